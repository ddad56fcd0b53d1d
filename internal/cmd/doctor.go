package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/health"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check data lists, executable and directories",
	Long: `Check that a satellite can be processed with the current configuration.

The data list of every configured file type is read, the collocation
executable for collo_version is located and the work, checkpoint, log and
manifest directories are probed for writability. Directories that do not
exist yet are reported as degraded since submit creates them.

The command fails when any check is unhealthy.

Examples:
  hirs-avhrr doctor --satellite metop-b
  hirs-avhrr doctor --satellite noaa-19 --format json`,
	RunE: runDoctor,
}

var (
	doctorSatellite string
	doctorFormat    string
)

func init() {
	doctorCmd.Flags().StringVar(&doctorSatellite, "satellite", "", "satellite name, e.g. metop-b")
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "output format: text, json, yaml")
	_ = doctorCmd.MarkFlagRequired("satellite")

	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one named check result.
type doctorCheck struct {
	Name   string        `json:"name" yaml:"name"`
	Result health.Result `json:"result" yaml:"result"`
}

// doctorReport is the output of the doctor command.
type doctorReport struct {
	Config    string        `json:"config" yaml:"config"`
	Satellite string        `json:"satellite" yaml:"satellite"`
	Status    health.Status `json:"status" yaml:"status"`
	Checks    []doctorCheck `json:"checks" yaml:"checks"`
}

// RenderText implements ux.TextRenderer.
func (r doctorReport) RenderText(w io.Writer) error {
	fmt.Fprintln(w, ux.TitleStyle.Render("Doctor: "+r.Satellite))
	fmt.Fprintln(w, ux.Field("Config", r.Config))
	for _, c := range r.Checks {
		line := fmt.Sprintf("%s %-16s %s", statusSymbol(c.Result.Status), c.Name, c.Result.Message)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		keys := make([]string, 0, len(c.Result.Details))
		for k := range c.Result.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s: %v\n", ux.LabelStyle.Render(k), c.Result.Details[k])
		}
	}
	_, err := fmt.Fprintln(w, ux.Field("Status", statusStyle(r.Status)))
	return err
}

func statusSymbol(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return ux.SuccessStyle.Render("✓")
	case health.StatusDegraded:
		return ux.WarningStyle.Render("!")
	default:
		return ux.FailureStyle.Render("✗")
	}
}

func statusStyle(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return ux.SuccessStyle.Render(s.String())
	case health.StatusDegraded:
		return ux.WarningStyle.Render(s.String())
	default:
		return ux.FailureStyle.Render(s.String())
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd, doctorFormat)
	if err != nil {
		return err
	}
	satellite, err := checkSatellite(doctorSatellite)
	if err != nil {
		return err
	}
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = cfg.ForSatellite(satellite)
	logger := newLogger(cmd).With("satellite", satellite)

	manager, err := healthChecks(cfg)
	if err != nil {
		return err
	}

	results := manager.Check(cmd.Context())
	report := doctorReport{
		Config:    path,
		Satellite: satellite,
		Status:    manager.OverallStatus(results),
	}
	for _, name := range manager.CheckNames() {
		res := results[name]
		report.Checks = append(report.Checks, doctorCheck{Name: name, Result: *res})
		logger.Debug("health check", "name", name, "status", res.Status, "latency", res.Latency)
	}

	if err := formatter.Format(report); err != nil {
		return err
	}
	if unhealthy := manager.Failing(results); len(unhealthy) > 0 {
		return errors.New(errors.ErrCodeConfigInvalid, errors.KindConfig,
			fmt.Sprintf("%d check(s) unhealthy: %s", len(unhealthy), strings.Join(unhealthy, ", "))).
			WithSuggestion("Fix the paths in the configuration file and run doctor again")
	}
	return nil
}

// healthChecks builds the checks for one satellite's configuration: its data
// lists in file type order, the executable and the batch directories.
func healthChecks(cfg config.Config) (*health.Manager, error) {
	manager := health.NewManager()
	fileTypes := make([]string, 0, len(cfg.InputSources.InputData))
	for ft := range cfg.InputSources.InputData {
		fileTypes = append(fileTypes, ft)
	}
	sort.Strings(fileTypes)
	for _, ft := range fileTypes {
		manager.AddChecker(health.NewDataListChecker(ft, cfg.InputSources.InputData[ft]))
	}

	loc, err := collo.NewLocator(cfg.Executable)
	if err != nil {
		return nil, err
	}
	manager.AddChecker(health.NewExecutableChecker(loc, cfg.HirsVersion, cfg.ColloVersion))

	dirs := []struct{ name, path string }{
		{"work-dir", cfg.WorkDir},
		{"checkpoint-dir", cfg.Batch.CheckpointDir},
		{"log-dir", cfg.Batch.LogDir},
		{"manifest-dir", cfg.Batch.ManifestDir},
	}
	for _, d := range dirs {
		if d.path != "" {
			manager.AddChecker(health.NewDirectoryChecker(d.name, d.path))
		}
	}
	return manager, nil
}
