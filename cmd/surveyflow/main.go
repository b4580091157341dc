package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/flow"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for surveyflow state data
	DefaultStateDir = "/var/lib/surveyflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "surveyflow.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	if *flags.surveyID == "" && *flags.participationID == "" {
		slog.Error("Nothing to do: pass -survey and/or -participation")
		flag.Usage()
		os.Exit(2)
	}

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := run(ctx, st, flags); err != nil {
		slog.Error("surveyflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("surveyflow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	MaxPasses   int
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	surveyID        *string
	participationID *string
	visualize       *bool
	maxPasses       *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("SURVEYFLOW_STATE_DIR"),
		MaxPasses:   util.ParseIntEnv("SURVEYFLOW_MAX_PASSES", flow.DefaultAvailabilityPasses),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SURVEYFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"SURVEYFLOW_STATE_DIR", config.StateDir,
		"SURVEYFLOW_MAX_PASSES", config.MaxPasses)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for surveyflow data (overrides $SURVEYFLOW_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		surveyID:        flag.String("survey", "", "survey id to analyze for structural defects"),
		participationID: flag.String("participation", "", "participation id to compute flow state for"),
		visualize:       flag.Bool("visualize", false, "emit the survey's flow graph alongside the analysis"),
		maxPasses:       flag.Int("max-passes", config.MaxPasses, "availability propagation pass cap (overrides $SURVEYFLOW_MAX_PASSES)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"survey", *flags.surveyID,
		"participation", *flags.participationID,
		"visualize", *flags.visualize,
		"maxPasses", *flags.maxPasses)

	return flags
}

// ensureDirectoriesExist creates the state directory if needed
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0700); err != nil {
		return err
	}
	slog.Debug("State directory ensured", "state_dir", *flags.stateDir)
	return nil
}

// storeHandle is the capability set the command needs from a backend.
type storeHandle interface {
	store.Store
	store.JobRepo
}

// openStore selects the backend from the DSN shape.
func openStore(flags Flags) (storeHandle, error) {
	dsn := *flags.dbDSN
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		slog.Info("Using SQLite store", "path", dsn)
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

// run executes the requested analyses and writes JSON results to stdout.
func run(ctx context.Context, st storeHandle, flags Flags) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *flags.surveyID != "" {
		analyzer := flow.NewGraphAnalyzer(st)
		analyzer.SetMaxPasses(*flags.maxPasses)

		report, err := analyzer.AnalyzeSurvey(ctx, *flags.surveyID)
		if err != nil {
			return err
		}
		if err := enc.Encode(report); err != nil {
			return err
		}

		if *flags.visualize {
			rules, err := st.GetSurveyLogic(*flags.surveyID)
			if err != nil {
				return err
			}
			viz := analyzer.BuildVisualization(*flags.surveyID, rules)
			if err := enc.Encode(viz); err != nil {
				return err
			}
		}
	}

	if *flags.participationID != "" {
		tracker := flow.NewFlowStateTracker(st)
		tracker.SetMaxPasses(*flags.maxPasses)

		state, err := tracker.ComputeFlowState(ctx, *flags.participationID)
		if err != nil {
			return err
		}
		if err := enc.Encode(state); err != nil {
			return err
		}
	}

	return nil
}
