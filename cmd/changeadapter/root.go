package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/app"
	"github.com/nhle/change-adapter/internal/logger"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source/servicenow"
	"github.com/nhle/change-adapter/internal/store"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// newRootCmd builds the command tree. Commands are created per call so
// tests can run them in isolation.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "changeadapter",
		Short: "ServiceNow change request adapter",
		Long: `changeadapter connects to ServiceNow instances, checks their health,
announces ONLINE/OFFLINE status and reads or creates change requests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(),
		"config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level (overrides config and CHANGEADAPTER_LOG_LEVEL)")

	root.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newRecordsCmd(opts),
		newCreateCmd(opts),
		newHistoryCmd(opts),
		newWatchCmd(opts),
		newConfigureCmd(opts),
	)
	return root
}

// environment is the loaded configuration plus the logger built from it.
type environment struct {
	cfg *model.AppConfig
	log zerolog.Logger
}

// load reads the configuration and builds the logger. Logs go to the
// command's stderr.
func (o *rootOptions) load(cmd *cobra.Command) (*environment, error) {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.New(cfg.Log.Env, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	return &environment{cfg: cfg, log: log}, nil
}

// adapter builds the adapter of one configured instance.
func (e *environment) adapter(id string, opts ...servicenow.Option) (*servicenow.Adapter, error) {
	inst, ok := e.cfg.Instance(id)
	if !ok {
		return nil, fmt.Errorf("unknown instance %q", id)
	}
	return app.BuildAdapter(inst, e.log, opts...)
}

// openStore opens the SQLite store, creating its directory if needed.
func (e *environment) openStore() (*store.SQLiteStore, error) {
	path := e.cfg.Store.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return store.NewSQLiteStore(path)
}
