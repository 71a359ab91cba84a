package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/announce"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
)

// engine wires a pipeline for the loaded config and starts the metrics
// server when enabled. The returned stop function shuts it down.
func (a *app) engine() (*pipeline.Engine, *metrics.Metrics, func()) {
	m := metrics.New(prometheus.NewRegistry())
	stop := func() {}
	if a.cfg.Metrics.Enabled {
		shutdown := m.StartServer(a.cfg.Metrics.Port)
		stop = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}
	}
	return pipeline.New(a.cfg, a.newSource(a.cfg), m), m, stop
}

func newBuildCmd(a *app) *cobra.Command {
	var skipAnnounce bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run both passes and write vocabulary, filter and manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, m, stop := a.engine()
			defer stop()

			if !skipAnnounce {
				multi, closeTargets, err := announce.FromConfig(ctx, a.cfg, m)
				if err != nil {
					return err
				}
				defer closeTargets()
				if multi.Len() > 0 {
					e.WithAnnouncer(multi)
				}
			}

			manifest, err := e.Run(ctx)
			if manifest != nil {
				if printErr := printJSON(cmd, manifest); printErr != nil && err == nil {
					err = printErr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&skipAnnounce, "no-announce", false, "do not publish the manifest to kafka, redis or postgres")
	return cmd
}

func newVocabCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "Run the vocabulary pass only",
		Long: `vocab replaces the published vocabulary. Run phrases afterwards; until
then the filter and manifest describe the previous vocabulary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lock, err := artifact.Lock(a.cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			e, _, stop := a.engine()
			defer stop()
			idx, err := e.BuildVocabulary(cmd.Context())
			if err != nil {
				return err
			}
			defer idx.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d words\n", e.VocabPath(), idx.Len())
			return nil
		},
	}
}

func newPhrasesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "phrases",
		Short: "Run the phrase pass against an existing vocabulary",
		Long: `phrases rebuilds the phrase filter against the published vocabulary and
writes a fresh manifest for the pair, so verify applies afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, stop := a.engine()
			defer stop()
			m, err := e.RunPhrases(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d fingerprints\n", e.FilterPath(), m.FilterKind, m.Fingerprints)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
