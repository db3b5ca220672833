package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"subject-eval-scraper/config"
	"subject-eval-scraper/models"
	"subject-eval-scraper/storage"
	"subject-eval-scraper/utils"
)

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type commandContext struct {
	subject   string
	outputDir string
	logLevel  string

	configOnce sync.Once
	config     *config.Config
	logger     *utils.Logger
}

// ensureConfig loads the environment once and applies the persistent flags
// on top of it.
func (c *commandContext) ensureConfig() (*config.Config, *utils.Logger) {
	c.configOnce.Do(func() {
		cfg := config.Load()
		if s := strings.TrimSpace(c.subject); s != "" {
			cfg.SubjectCode = s
		}
		if c.outputDir != "" {
			cfg.OutputDir = c.outputDir
		}
		if c.logLevel != "" {
			cfg.LogLevel = c.logLevel
		}
		c.config = cfg
		c.logger = utils.NewLogger(cfg.LogLevel)
		if !cfg.DotEnvLoaded {
			c.logger.Debug("No .env file found, using environment variables only")
		}
	})
	return c.config, c.logger
}

func (c *commandContext) close() {
	if c.logger != nil {
		c.logger.Sync()
	}
}

// loadTables reads the subject's course table and the instructor table
// without taking the ledger lock.
func (c *commandContext) loadTables() ([]models.CourseRecord, []models.TeacherAggregate, error) {
	cfg, _ := c.ensureConfig()
	return storage.NewCSVTables(cfg.OutputDir, cfg.SubjectCode).Load()
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "subject-eval-scraper",
		Short:         "Harvest subject evaluation reports into CSV tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.subject, "subject", "s", "", "Subject code to harvest (overrides SUBJECT_CODE)")
	rootCmd.PersistentFlags().StringVarP(&ctx.outputDir, "output-dir", "o", "", "Directory holding the CSV tables (overrides OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newScrapeCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newTeachersCommand(ctx))

	return rootCmd
}
