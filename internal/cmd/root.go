package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var rootCmd = &cobra.Command{
	Use:   "hirs-avhrr",
	Short: "Collocate HIRS and AVHRR granules",
	Long: `hirs-avhrr finds HIRS level-1b granules that have a matching PATMOS-x
AVHRR level-2 granule and runs the collocation executable for each of them.

Contexts are discovered from the data lists named in the configuration.
A context can be run on its own with 'run' or as part of a batch with 'submit'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default $"+config.EnvConfigPath+", then .hirs_avhrr/config.yaml or hirs_avhrr.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
}

// newLogger builds the command logger. Flags win over the environment.
func newLogger(cmd *cobra.Command) *log.Logger {
	cfg := log.FromEnv(log.DefaultConfig())
	if logLevel != "" {
		cfg.Level = log.ParseLevel(logLevel)
	}
	if logFormat != "" {
		cfg.Format = log.ParseFormat(logFormat)
	}
	cfg.Output = log.NewOutput(cmd.ErrOrStderr())
	return log.New(cfg)
}

// loadConfig reads --config or the discovered configuration file.
func loadConfig() (config.Config, string, error) {
	path := cfgFile
	if path == "" {
		found, err := ux.DiscoverConfigFile()
		if err != nil {
			return config.Config{}, "", errors.Wrap(errors.ErrCodeConfigNotFound, errors.KindConfig,
				"no configuration file", err).
				WithSuggestion("Pass --config or create " + ux.StateDirName + "/" + ux.ConfigFileName)
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, path, err
	}
	return cfg, path, nil
}

// checkSatellite rejects platforms without a granule name code.
func checkSatellite(satellite string) (string, error) {
	satellite = strings.ToLower(strings.TrimSpace(satellite))
	if _, ok := granule.CodeForSatellite(satellite); !ok {
		return "", errors.NewConfigInvalidError(fmt.Sprintf("unknown satellite %q", satellite), nil).
			WithSuggestion("Known satellites: " + strings.Join(granule.Satellites(), ", "))
	}
	return satellite, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and shorter ISO forms, read as UTC.
func parseTime(flag, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New(errors.ErrCodeParseTimestamp, errors.KindParseFailure,
		fmt.Sprintf("--%s %q is not a time", flag, s)).
		WithSuggestion("Use RFC 3339 (2017-07-01T00:00:00Z) or 2017-07-01")
}

// parseInterval reads the half-open [start, end) range given by two flags
// and returns it as the closed interval [start, end - Wedge], so a granule
// starting exactly at end belongs to the next run.
func parseInterval(start, end string) (granule.Interval, error) {
	left, err := parseTime("start", start)
	if err != nil {
		return granule.Interval{}, err
	}
	right, err := parseTime("end", end)
	if err != nil {
		return granule.Interval{}, err
	}
	if !right.After(left) {
		return granule.Interval{}, errors.New(errors.ErrCodeParseInterval, errors.KindParseFailure,
			fmt.Sprintf("invalid interval: --end %s must be after --start %s",
				right.Format(time.RFC3339), left.Format(time.RFC3339))).
			WithSuggestion("--end is exclusive; use the next day to cover a whole day")
	}
	iv, err := granule.NewInterval(left, right.Add(-granule.Wedge))
	if err != nil {
		return granule.Interval{}, errors.Wrap(errors.ErrCodeParseInterval, errors.KindParseFailure,
			"invalid interval", err)
	}
	return iv, nil
}

// formatterFor returns the output formatter for a --format value.
func formatterFor(cmd *cobra.Command, format string) (ux.Formatter, error) {
	f, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return nil, errors.NewConfigInvalidError("--format", err)
	}
	return f, nil
}
