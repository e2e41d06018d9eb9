package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/caiqy/threatdigest/internal/config"
	"github.com/caiqy/threatdigest/internal/db"
	"github.com/caiqy/threatdigest/internal/digest"
	"github.com/caiqy/threatdigest/internal/feed"
	"github.com/caiqy/threatdigest/internal/pipeline"
	"github.com/caiqy/threatdigest/internal/summarize"
)

// openStore opens the store connection and guarantees release on every
// exit path via the returned closer.
func openStore(cfg config.Config) (*gorm.DB, func(), error) {
	if err := cfg.RequireDB(); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}
	return conn, closer, nil
}

func summarizers(cfg config.Config) []summarize.Summarizer {
	var out []summarize.Summarizer
	if cfg.GrokAPIKey != "" {
		out = append(out, summarize.NewGrokClient(cfg.GrokAPIKey))
	}
	if cfg.ClaudeAPIKey != "" {
		out = append(out, summarize.NewClaudeClient(cfg.ClaudeAPIKey))
	}
	return out
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the pulses and indicators tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closer, err := openStore(config.FromViper(v))
			if err != nil {
				return err
			}
			defer closer()
			if err := db.Migrate(conn); err != nil {
				return err
			}
			log.Info("schema migrated")
			return nil
		},
	}
}

func newIngestCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch subscribed pulses and persist them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			if err := cfg.RequireFeed(); err != nil {
				return err
			}
			conn, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer()
			if err := db.Migrate(conn); err != nil {
				return err
			}

			p := pipeline.New(feed.NewClient(cfg.OTXAPIKey), conn, nil)
			report, err := p.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d pulses, wrote %d pulses / %d indicators, dropped %d malformed records\n",
				report.Fetched, report.PulsesWritten, report.IndicatorsWritten, report.Dropped)
			return nil
		},
	}
}

func newDigestCmd(v *viper.Viper) *cobra.Command {
	var showPromptOnly bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Aggregate the persisted data and print the digest prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closer, err := openStore(config.FromViper(v))
			if err != nil {
				return err
			}
			defer closer()

			d, err := digest.NewAggregator(conn).Collect(cmd.Context())
			if err != nil {
				return err
			}
			if !showPromptOnly {
				fmt.Fprintf(cmd.OutOrStdout(), "Digest generated at %s\n\n", digest.FormatGeneratedAt(d.GeneratedAt))
			}
			fmt.Fprint(cmd.OutOrStdout(), digest.Format(d))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPromptOnly, "prompt-only", false, "print only the prompt text")
	return cmd
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest, digest, summarize",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			if err := cfg.RequireFeed(); err != nil {
				return err
			}
			conn, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer()
			if err := db.Migrate(conn); err != nil {
				return err
			}

			svcs := summarizers(cfg)
			if len(svcs) == 0 {
				log.Warn("no summarizer API keys configured, responses will be skipped")
			}

			p := pipeline.New(feed.NewClient(cfg.OTXAPIKey), conn, svcs)
			ingest, summary, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fetched %d pulses, wrote %d pulses / %d indicators, dropped %d malformed records\n",
				ingest.Fetched, ingest.PulsesWritten, ingest.IndicatorsWritten, ingest.Dropped)
			if summary == nil {
				return nil
			}
			for _, s := range summary.Summaries {
				fmt.Fprintf(out, "\n=== %s ===\n%s\n", s.Service, s.Text)
			}
			return nil
		},
	}
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			rendered, err := config.FromViper(v).Redacted().RenderYAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	})
	return cmd
}
