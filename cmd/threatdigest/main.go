// Command threatdigest ingests AlienVault OTX pulses into the relational
// store and produces LLM-summarized digests of the accumulated data.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/caiqy/threatdigest/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:          "threatdigest",
		Short:        "OTX threat-intelligence ingestion and digest pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, configFile); err != nil {
				return err
			}
			setupLogging(config.FromViper(v))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml, $HOME/.threatdigest/config.yaml)")
	root.PersistentFlags().String("db-dsn", "", "store DSN (Postgres DSN or SQLite path)")
	_ = v.BindPFlag("db.dsn", root.PersistentFlags().Lookup("db-dsn"))

	root.AddCommand(
		newMigrateCmd(v),
		newIngestCmd(v),
		newDigestCmd(v),
		newRunCmd(v),
		newConfigCmd(v),
	)
	return root
}

func loadConfig(v *viper.Viper, configFile string) error {
	config.Bind(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.threatdigest")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setupLogging(cfg config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
}
