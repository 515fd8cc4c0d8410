package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crackgov/srs/internal/config"
	"github.com/crackgov/srs/internal/storage"
)

type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:          "crackgov-srs",
		Short:        "Spaced-repetition flashcard service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			slog.SetDefault(newLogger(cfg.Log, cmd.ErrOrStderr()))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "crackgov.yaml", "Path to the YAML config file")
	pf.String("driver", defaults.Database.Driver, "Database driver (sqlite or postgres)")
	pf.String("db", defaults.Database.DSN, "Database file or connection string")
	pf.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	pf.String("repos-dir", defaults.Import.ReposDir, "Directory for git deck checkouts")

	root.AddCommand(a.serveCmd(), a.importCmd(), a.dueCmd())
	return root
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) openStore() (*storage.DB, error) {
	db, err := storage.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "driver", a.cfg.Database.Driver)
	return db, nil
}
