package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/archstudio/intake/config"
	"github.com/archstudio/intake/internal/logger"
)

type commandContext struct {
	envFile  string
	jsonOut  bool
	locale   string
	settings *config.Settings
	log      *logrus.Logger
}

func (c *commandContext) ensureSettings() (config.Settings, error) {
	if c.settings != nil {
		return *c.settings, nil
	}
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return config.Settings{}, err
		}
	} else {
		_ = godotenv.Load()
	}
	s, err := config.Load()
	if err != nil {
		return config.Settings{}, err
	}
	if c.locale == "" {
		c.locale = s.Locale
	}
	c.settings = &s
	return s, nil
}

func (c *commandContext) logger() *logrus.Logger {
	if c.log == nil {
		// stdout carries tables and JSON; logs go to stderr.
		format := os.Getenv("LOG_FORMAT")
		if format == "" {
			format = "text"
		}
		c.log = logger.NewWithOutput(os.Stderr, os.Getenv("LOG_LEVEL"), format)
	}
	return c.log
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "intake-cli",
		Short:         "Recording intake pipeline tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureSettings()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "", "Load environment variables from this file")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOut, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&ctx.locale, "locale", "", "Message locale (he, en)")

	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newReconcileCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))

	return rootCmd
}
