package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/vocab"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/health"
)

func checksumCheck(path string, want artifact.Info) health.Check {
	return func(context.Context) health.ComponentHealth {
		got, err := artifact.Checksum(path)
		if err != nil {
			return health.Down(err)
		}
		if got != want {
			return health.Down(fmt.Errorf("size %d crc32 %08x, manifest says size %d crc32 %08x",
				got.Size, got.CRC32, want.Size, want.CRC32))
		}
		return health.Up(fmt.Sprintf("%d bytes", got.Size))
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the artifacts of the last build against its manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := artifact.ReadManifest(a.outPath(a.cfg.Output.ManifestFile))
			if err != nil {
				return err
			}
			vocabPath := a.outPath(m.Vocabulary.Name)
			filterPath := a.outPath(m.Filter.Name)

			checker := health.NewChecker()
			checker.Register("vocabulary_checksum", checksumCheck(vocabPath, m.Vocabulary))
			checker.Register("filter_checksum", checksumCheck(filterPath, m.Filter))
			checker.Register("vocabulary", func(context.Context) health.ComponentHealth {
				idx, err := vocab.Open(vocabPath)
				if err != nil {
					return health.Down(err)
				}
				defer idx.Close()
				if idx.Len() != m.Words {
					return health.Down(fmt.Errorf("%d words, manifest says %d", idx.Len(), m.Words))
				}
				return health.Up(fmt.Sprintf("%d words", idx.Len()))
			})
			checker.Register("filter", func(context.Context) health.ComponentHealth {
				f, err := filter.Load(filterPath)
				if err != nil {
					return health.Down(err)
				}
				if f.Len() != m.Fingerprints || string(f.Kind()) != m.FilterKind {
					return health.Down(fmt.Errorf("%s filter of %d keys, manifest says %s of %d",
						f.Kind(), f.Len(), m.FilterKind, m.Fingerprints))
				}
				return health.Up(fmt.Sprintf("%s, %d keys", f.Kind(), f.Len()))
			})

			report := checker.Run(cmd.Context())
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if report.Status != health.StatusUp {
				return apperrors.Newf(apperrors.ErrCorrupt, "build %s failed verification", m.RunID)
			}
			return nil
		},
	}
}
