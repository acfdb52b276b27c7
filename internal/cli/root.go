// Package cli implements the logvault command line: out-of-band schema
// management (migrate up/down), store inspection (status), and a JSON-lines
// smoke-test writer (send).
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/logvault/logvault/internal/config"
	"github.com/logvault/logvault/internal/conn"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
}

// NewRootCommand creates the root command for the logvault CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "logvault",
		Short: "Durable SQLite sink for log and metric pipelines",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file path (overrides config with file mode)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration from flags and the
// optional config file. --db forces file mode at the given path.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.DBPath != "" {
		cfg.Mode = "file"
		cfg.Store = opts.DBPath
	}
	if cfg.LogLevel == "info" && opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// openHandle opens a handle per the effective configuration.
func openHandle(opts *RootOptions) (*conn.DB, config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, config.Config{}, err
	}
	mode, err := cfg.ConnMode()
	if err != nil {
		return nil, config.Config{}, err
	}
	h, err := conn.Open(mode, cfg.Store)
	if err != nil {
		return nil, config.Config{}, err
	}
	return h, cfg, nil
}
