// Package cmd provides the phraseindex CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	sourcePath string
	outDir     string
	workers    int

	cfg       *config.Config
	newSource func(cfg *config.Config) source.Source
}

func pbfSource(cfg *config.Config) source.Source {
	return source.NewPBF(cfg.Source.Path, cfg.Source.DecoderProcs, cfg.Source.PartitionSize)
}

// NewRootCmd creates the root command. newSource picks the record source of
// build commands; nil reads the configured PBF extract.
func NewRootCmd(newSource func(cfg *config.Config) source.Source) *cobra.Command {
	if newSource == nil {
		newSource = pbfSource
	}
	a := &app{newSource: newSource}

	cmd := &cobra.Command{
		Use:   "phraseindex",
		Short: "Build and query a phrase index of OpenStreetMap names",
		Long: `phraseindex scans an OSM PBF extract twice. The first pass collects every
word of every name tag into a sorted vocabulary stored as an FST. The second
pass tokenizes each name against that vocabulary and stores a fingerprint of
every distinct word sequence in an approximate-membership filter.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&a.sourcePath, "source", "", "OSM PBF extract (overrides source.path)")
	cmd.PersistentFlags().StringVar(&a.outDir, "out", "", "output directory (overrides output.dir)")
	cmd.PersistentFlags().IntVar(&a.workers, "workers", 0, "scan workers (overrides scan.workers)")

	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newVocabCmd(a))
	cmd.AddCommand(newPhrasesCmd(a))
	cmd.AddCommand(newLookupCmd(a))
	cmd.AddCommand(newContainsCmd(a))
	cmd.AddCommand(newVerifyCmd(a))
	return cmd
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	if a.sourcePath != "" {
		cfg.Source.Path = a.sourcePath
	}
	if a.outDir != "" {
		cfg.Output.Dir = a.outDir
	}
	if a.workers > 0 {
		cfg.Scan.Workers = a.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(nil)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "phraseindex: %v\n", err)
		return apperrors.ExitCode(err)
	}
	return 0
}
