package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kosarica/store-service/config"
	"github.com/kosarica/store-service/internal/database"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "storectl - Store ranking and opening-hours tool",
	Long: `A CLI tool for ranking grocery stores by price and distance, resolving
opening hours, formatting display values, and maintaining the store tables
the store service reads.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional for the offline commands, don't fail here
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	// Skip initialization for commands that don't need database/config
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger(cmd.ErrOrStderr())

	if cmd.Name() == "import" {
		if cfg == nil {
			return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
		}
		if err := initDatabase(cmd.Context()); err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		logger.Info().Msg("Database connected")
	}

	return nil
}

// initLogger writes to stderr so that command output on stdout stays parseable
func initLogger(w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = w
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: w, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func initDatabase(ctx context.Context) error {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := database.Connect(ctx, dbURL, database.PoolConfig{
		MaxConns:        cfg.Database.MaxConnections,
		MinConns:        cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

// hoursLocation returns the zone named by --timezone, falling back to the
// configured hours.timezone and then UTC.
func hoursLocation(name string) (*time.Location, error) {
	if name == "" && cfg != nil {
		name = cfg.Hours.Timezone
	}
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// resolveAt parses an RFC 3339 instant, defaulting to now, in loc.
func resolveAt(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Now().In(loc), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: must be RFC 3339", raw)
	}
	return at.In(loc), nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
