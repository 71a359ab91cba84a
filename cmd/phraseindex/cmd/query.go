package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/query"
)

func (a *app) outPath(name string) string {
	return filepath.Join(a.cfg.Output.Dir, name)
}

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup WORD...",
		Short: "Print the vocabulary identifier of each word",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := query.OpenVocabulary(a.outPath(a.cfg.Output.VocabFile))
			if err != nil {
				return err
			}
			defer idx.Close()

			out := cmd.OutOrStdout()
			for _, word := range args {
				id, ok, err := idx.WordID(word)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s\t-\n", word)
					continue
				}
				fmt.Fprintf(out, "%s\t%d\n", word, id)
			}
			return nil
		},
	}
}

func newContainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contains PHRASE...",
		Short: "Report whether a phrase is probably one of the indexed names",
		Long: `contains joins its arguments into one phrase and checks it against the
phrase filter. "no" is definite; "maybe" can be a false positive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := query.Open(a.outPath(a.cfg.Output.VocabFile), a.outPath(a.cfg.Output.FilterFile))
			if err != nil {
				return err
			}
			defer idx.Close()

			text := strings.Join(args, " ")
			ok, err := idx.ContainsPhrase(text)
			if err != nil {
				return err
			}
			answer := "no"
			if ok {
				answer = "maybe"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", text, answer)
			return nil
		},
	}
}
