package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"skillgap/gap"
	"skillgap/logger"
	"skillgap/output"
	"skillgap/remote"
	"skillgap/scanner"
	"skillgap/service"
	"skillgap/store"
)

// Global flags.
var (
	flagConfig  string
	flagJSON    bool
	flagNoColor bool
	flagNoStore bool
)

var rootCmd = &cobra.Command{
	Use:   "skillgap",
	Short: "Find, compare and sync SKILL.md skills across workspace, library and marketplace",
	Long: `skillgap scans a workspace and a global skill library for SKILL.md
documents, compares them with curated remote repositories, and imports,
installs or trashes skills to close the gap.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagNoColor || os.Getenv("NO_COLOR") != "" {
			output.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "skillgap.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().BoolVar(&flagNoStore, "no-store", false, "do not record activity")
}

// errReported marks a failure whose details were already written to stdout.
var errReported = errors.New("failure already reported")

func main() {
	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if errors.Is(err, errReported) {
		os.Exit(1)
	}

	if output.Detect(flagJSON) == output.FormatJSON {
		output.JSONError(os.Stdout, errorCode(err), err.Error(), nil)
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}

// errorCode maps sentinel errors to stable codes for JSON output.
// ErrAllSourcesFailed wraps the per-source errors, so it is checked first.
func errorCode(err error) string {
	switch {
	case errors.Is(err, remote.ErrAllSourcesFailed):
		return "ALL_SOURCES_FAILED"
	case errors.Is(err, service.ErrUnknownSkill):
		return "UNKNOWN_SKILL"
	case errors.Is(err, gap.ErrDestinationExists):
		return "DESTINATION_EXISTS"
	case errors.Is(err, remote.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, remote.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, service.ErrNoLedger):
		return "NO_LEDGER"
	case errors.Is(err, errConfirmationRequired):
		return "CONFIRMATION_REQUIRED"
	default:
		return "INTERNAL_ERROR"
	}
}

// app holds everything a command needs. Close releases the store and the
// loggers.
type app struct {
	cfg    *Config
	log    logger.Logger
	ledger store.Store
	svc    *service.Service
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Error("store.close_failed", logger.Err(err))
		}
	}
	a.log.Close()
}

func (a *app) format() output.Format {
	return output.Detect(flagJSON)
}

// newApp loads the config and wires logger, store, scanner, remote client
// and gap analyzer into a service.
func newApp() (*app, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	var ledger store.Store
	if !flagNoStore {
		if ledger, err = newStore(cfg, log); err != nil {
			log.Close()
			return nil, err
		}
	}

	sc := scanner.New(scanner.Config{
		Workspace:    cfg.Workspace,
		RootSuffixes: cfg.Scan.RootSuffixes,
		ExtraRoots:   cfg.Scan.ExtraRoots,
		GlobalDir:    cfg.GlobalDir,
		SkillFile:    cfg.SkillFile,
	}, log)

	rc := remote.NewClient(remote.Config{
		Sources:     cfg.Remote.Sources,
		NoDefaults:  cfg.Remote.NoDefaults,
		Token:       cfg.Remote.Token,
		CacheTTL:    time.Duration(cfg.Remote.CacheTTLSeconds) * time.Second,
		APIBaseURL:  cfg.Remote.APIBaseURL,
		RawBaseURL:  cfg.Remote.RawBaseURL,
		BatchSize:   cfg.Remote.BatchSize,
		BatchDelay:  ParseDuration(cfg.Remote.BatchDelay, 150*time.Millisecond),
		HTTPTimeout: ParseDuration(cfg.Remote.HTTPTimeout, 30*time.Second),
		SkillFile:   cfg.SkillFile,
	}, log)

	importDir := scanner.ExpandHome(cfg.Import.TargetDir)
	if !filepath.IsAbs(importDir) {
		importDir = filepath.Join(sc.Workspace(), importDir)
	}

	svc := service.New(service.Config{
		Scanner:   sc,
		Remote:    rc,
		Gaps:      gap.New(gap.NewDirTrash(scanner.ExpandHome(cfg.Trash.Dir)), log),
		Ledger:    ledger,
		ImportDir: importDir,
	}, log)

	log.Debug("skillgap.ready",
		logger.String("config", flagConfig),
		logger.String("workspace", sc.Workspace()),
		logger.Int("sources", rc.Registry().Len()),
		logger.String("store", storeType(cfg, ledger)),
	)
	return &app{cfg: cfg, log: log, ledger: ledger, svc: svc}, nil
}

func newLogger(cfg *Config) (logger.Logger, error) {
	level := logger.ParseLevel(cfg.Logger.Level)
	var loggers []logger.Logger

	if *cfg.Logger.Console.Enabled {
		color := logger.ColorSupported(os.Stderr)
		if cfg.Logger.Console.Color != nil {
			color = *cfg.Logger.Console.Color
		}
		if flagNoColor {
			color = false
		}
		loggers = append(loggers, logger.NewConsole(level, color))
	}

	if cfg.Logger.File.Enabled {
		fileLog, err := logger.NewFile(logger.FileConfig{
			Dir:        scanner.ExpandHome(cfg.Logger.File.Dir),
			Prefix:     "skillgap",
			Level:      level,
			MaxSizeMB:  cfg.Logger.File.MaxSizeMB,
			MaxAgeDays: cfg.Logger.File.MaxAgeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("init file logger: %w", err)
		}
		loggers = append(loggers, fileLog)
	}

	if cfg.Logger.Structured.Enabled {
		structLog, err := logger.NewStructured(scanner.ExpandHome(cfg.Logger.Structured.Path), level)
		if err != nil {
			logger.Multi(loggers...).Close()
			return nil, fmt.Errorf("init structured logger: %w", err)
		}
		loggers = append(loggers, structLog)
	}

	switch len(loggers) {
	case 0:
		return logger.Nop(), nil
	case 1:
		return loggers[0], nil
	default:
		return logger.Multi(loggers...), nil
	}
}

func newStore(cfg *Config, log logger.Logger) (store.Store, error) {
	var (
		ledger store.Store
		err    error
	)
	switch cfg.Store.Type {
	case "none":
		return nil, nil
	case "mysql":
		ledger, err = store.NewMySQLStore(store.MySQLConfig{
			DSN:             cfg.Store.MySQL.DSN,
			MaxOpenConns:    cfg.Store.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MySQL.MaxIdleConns,
			ConnMaxLifetime: ParseDuration(cfg.Store.MySQL.ConnMaxLifetime, 5*time.Minute),
		}, log)
	case "json":
		ledger, err = store.NewJSONStore(scanner.ExpandHome(cfg.Store.JSON.Path),
			ParseDuration(cfg.Store.JSON.FlushInterval, 30*time.Second), log)
	case "sqlite":
		dbPath := scanner.ExpandHome(cfg.Store.SQLite.Path)
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		ledger, err = store.NewSQLiteStore(dbPath, log)
	default:
		return nil, fmt.Errorf("unknown store type %q (want sqlite, mysql, json or none)", cfg.Store.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", cfg.Store.Type, err)
	}
	return ledger, nil
}

func storeType(cfg *Config, ledger store.Store) string {
	if ledger == nil {
		return "none"
	}
	return cfg.Store.Type
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
