package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/nichescout/internal/config"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	var envFile string

	root := &cobra.Command{
		Use:   "nichescout",
		Short: "Find under-served search niches",
		Long: `nichescout researches a keyword: it pulls related searches from Google
Trends, counts Google results for each, suggests matching domains, and
scores how crowded each niche is.

Commands:
  nichescout serve            Run the web interface
  nichescout search KEYWORD   Research one keyword from the terminal`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadDotEnv(v, envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to read settings from")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("renderer", "", "page renderer: browser, http")
	bindFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(v, config.KeyLogFormat, flags.Lookup("log-format"))
	bindFlag(v, config.KeyRenderer, flags.Lookup("renderer"))

	root.AddCommand(newServeCmd(v), newSearchCmd(v))
	return root
}

// loadConfig reads settings and installs the configured logger as the default.
func loadConfig(v *viper.Viper) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
