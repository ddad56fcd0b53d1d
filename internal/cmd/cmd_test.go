package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hirs-avhrr/internal/batch"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/exitcode"
)

var (
	hirsNames = []string{
		"NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV",
		"NSS.HIRX.M1.D17182.S0213.E0356.B2455354.SV",
	}
	ptmsxNames = []string{
		"NSS.GHRR.M1.D17182.S0020.E0201.B2455253.SV.level2.hdf",
		"NSS.GHRR.M1.D17182.S0201.E0343.B2455354.SV.level2.hdf",
	}
)

const firstOutput = "colloc.hirs.avhrr.metop-b.D17182.S0032.E0215.v20151014.hdf"

// project is a self-contained installation: data lists, archive, a fake
// collocation executable and a configuration file pointing at them.
type project struct {
	dir     string
	archive string
	config  string
}

func newProject(t *testing.T, script string) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{
		dir:     dir,
		archive: filepath.Join(dir, "archive"),
		config:  filepath.Join(dir, "hirs_avhrr.yaml"),
	}
	require.NoError(t, os.MkdirAll(p.archive, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lists"), 0o755))

	writeList := func(name string, entries []string) {
		var b strings.Builder
		for _, e := range entries {
			path := filepath.Join(p.archive, e)
			require.NoError(t, os.WriteFile(path, []byte("granule "+e), 0o644))
			fmt.Fprintln(&b, path)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "lists", name), []byte(b.String()), 0o644))
	}
	writeList("HIR1B_metop-b_latest", hirsNames)
	writeList("PTMSX_metop-b_latest", ptmsxNames)

	exe := filepath.Join(dir, "opt", "v20151014", "c++", "hirs_avhrr")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	cfg := fmt.Sprintf(`hirs_version: v20151014
collo_version: v20151014
input_sources:
  input_data:
    HIR1B: %[1]s/lists/HIR1B_{satellite}_latest
    PTMSX: %[1]s/lists/PTMSX_{satellite}_latest
executable:
  mode: package
  root: %[1]s/opt
work_dir: %[1]s/work
batch:
  jobs: 2
  retry_attempts: 1
  retry_base: 1ms
  retry_max: 5ms
  checkpoint_dir: %[1]s/checkpoints
  log_dir: %[1]s/logs
  manifest_dir: %[1]s/runs
  metrics_file: %[1]s/metrics/hirs_avhrr.prom
`, dir)
	require.NoError(t, os.WriteFile(p.config, []byte(cfg), 0o644))
	return p
}

// resetFlags restores every flag of every command to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestContextsJSON(t *testing.T) {
	p := newProject(t, "exit 0")

	stdout, _, err := execute(t, "contexts", "--config", p.config,
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02", "--format", "json")
	require.NoError(t, err)

	var got contextList
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "metop-b", got.Satellite)
	require.Len(t, got.Contexts, 2)
	assert.Equal(t, "2017-07-01T00:32:00Z", got.Contexts[0].Granule.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "v20151014", got.Contexts[1].ColloVersion)
}

func TestContextsText(t *testing.T) {
	p := newProject(t, "exit 0")

	stdout, _, err := execute(t, "contexts", "--config", p.config,
		"--satellite", "metop-b", "--start", "2017-07-01T01:00", "--end", "2017-07-02")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 context(s) for metop-b")
	assert.Contains(t, stdout, "2017-07-01T02:13:00Z")
	assert.NotContains(t, stdout, "00:32")
}

// addGranule catalogues one more HIRS granule in the project's data list.
func (p *project) addGranule(t *testing.T, name string) {
	t.Helper()
	path := filepath.Join(p.archive, name)
	require.NoError(t, os.WriteFile(path, []byte("granule "+name), 0o644))
	list, err := os.OpenFile(filepath.Join(p.dir, "lists", "HIR1B_metop-b_latest"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer list.Close()
	_, err = fmt.Fprintln(list, path)
	require.NoError(t, err)
}

func TestContextsEndIsExclusive(t *testing.T) {
	p := newProject(t, "exit 0")
	p.addGranule(t, "NSS.HIRX.M1.D17183.S0000.E0143.B2456061.SV")

	contextsFor := func(start, end string) []string {
		stdout, _, err := execute(t, "contexts", "--config", p.config,
			"--satellite", "metop-b", "--start", start, "--end", end, "--format", "json")
		require.NoError(t, err)
		var got contextList
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		var granules []string
		for _, c := range got.Contexts {
			granules = append(granules, c.Granule.Format("2006-01-02T15:04:05Z07:00"))
		}
		return granules
	}

	assert.Equal(t, []string{"2017-07-01T00:32:00Z", "2017-07-01T02:13:00Z"}, contextsFor("2017-07-01", "2017-07-02"))
	assert.Equal(t, []string{"2017-07-02T00:00:00Z"}, contextsFor("2017-07-02", "2017-07-03"))
}

func TestContextsEmptyInterval(t *testing.T) {
	p := newProject(t, "exit 0")

	_, _, err := execute(t, "contexts", "--config", p.config,
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-01")
	require.Error(t, err)
	assert.Equal(t, exitcode.ParseFailure, exitcode.DetermineExitCode(err))
}

func TestRunWritesOutput(t *testing.T) {
	p := newProject(t, `echo collocated > "$3"`)

	stdout, _, err := execute(t, "run", "--config", p.config, "--log-level", "debug",
		"--satellite", "metop-b", "--granule", "2017-07-01T00:32:00Z", "--format", "json")
	require.NoError(t, err)

	var got runResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, filepath.Join(p.dir, "work", firstOutput), got.Output)
	assert.FileExists(t, got.Output)
	assert.NotEmpty(t, got.Manifest)
	assert.FileExists(t, filepath.Join(p.dir, "metrics", "hirs_avhrr.prom"))
}

func TestRunSubprocessFailureExitCode(t *testing.T) {
	p := newProject(t, "exit 137")

	_, stderr, err := execute(t, "run", "--config", p.config, "--log-format", "json",
		"--satellite", "metop-b", "--granule", "2017-07-01T00:32:00Z")
	require.Error(t, err)
	assert.Equal(t, errors.KindSubprocessFailure, errors.KindOf(err))
	assert.Equal(t, exitcode.SubprocessFailure, exitcode.DetermineExitCode(err))
	assert.Contains(t, stderr, `"level":"ERROR"`)
}

func TestRunInputNotReady(t *testing.T) {
	p := newProject(t, "exit 0")
	require.NoError(t, os.Remove(filepath.Join(p.archive, ptmsxNames[0])))

	_, _, err := execute(t, "run", "--config", p.config,
		"--satellite", "metop-b", "--granule", "2017-07-01T00:32:00Z")
	require.Error(t, err)
	assert.Equal(t, exitcode.NotReady, exitcode.DetermineExitCode(err))
}

func TestSubmitAndResume(t *testing.T) {
	p := newProject(t, `echo collocated > "$3"`)
	args := []string{"submit", "--config", p.config,
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02", "--format", "json"}

	stdout, stderr, err := execute(t, args...)
	require.NoError(t, err)

	var first batch.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &first))
	assert.Equal(t, 2, first.Found)
	assert.Equal(t, 2, first.Succeeded)
	assert.True(t, first.OK())
	assert.FileExists(t, first.LogFile)
	assert.Contains(t, stderr, "job 1")

	metricsText, err := os.ReadFile(filepath.Join(p.dir, "metrics", "hirs_avhrr.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "hirs_avhrr_tasks_total")

	stdout, _, err = execute(t, "checkpoint", "list", "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, stdout, "hirs_avhrr_metop-b_s201707010000_e201707012359")

	stdout, _, err = execute(t, append(args, "--resume", "--quiet")...)
	require.NoError(t, err)
	var second batch.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &second))
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Succeeded)
}

func TestSubmitListen(t *testing.T) {
	p := newProject(t, `echo collocated > "$3"`)

	_, stderr, err := execute(t, "submit", "--config", p.config, "--quiet", "--listen", "127.0.0.1:0",
		"--log-level", "info", "--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02")
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving metrics and health probes")
}

func TestSubmitTraceFile(t *testing.T) {
	p := newProject(t, `echo collocated > "$3"`)
	traces := filepath.Join(p.dir, "traces", "spans.jsonl")
	cfg, err := os.ReadFile(p.config)
	require.NoError(t, err)
	cfg = append(cfg, []byte("telemetry:\n  enabled: true\n  trace_file: "+traces+"\n")...)
	require.NoError(t, os.WriteFile(p.config, cfg, 0o644))

	_, _, err = execute(t, "submit", "--config", p.config, "--quiet",
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02")
	require.NoError(t, err)

	data, err := os.ReadFile(traces)
	require.NoError(t, err)
	text := string(data)
	assert.Equal(t, 1, strings.Count(text, `"name":"batch.interval"`))
	assert.Equal(t, 2, strings.Count(text, `"name":"collo.run"`))
	assert.Equal(t, 2, strings.Count(text, `"name":"collo.subprocess"`))
}

func TestSubmitFailureExitCode(t *testing.T) {
	p := newProject(t, "exit 0")

	stdout, _, err := execute(t, "submit", "--config", p.config, "--quiet",
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02")
	require.Error(t, err)
	assert.Equal(t, exitcode.OutputMissing, exitcode.DetermineExitCode(err))
	assert.Contains(t, stdout, "Failed contexts:")
	assert.Contains(t, stdout, "output_missing")
}

func TestSubmitDryRun(t *testing.T) {
	p := newProject(t, "exit 1")

	stdout, _, err := execute(t, "submit", "--config", p.config, "--dry-run",
		"--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-08-01", "--monthly")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Submission summary (dry run)")
	assert.Contains(t, stdout, "job 2  2017-07-01T02:13:00Z")
	assert.NoDirExists(t, filepath.Join(p.dir, "checkpoints"))
}

func TestParseCommand(t *testing.T) {
	stdout, _, err := execute(t, "parse", "/data/"+hirsNames[0], "NSS.HIRX.NP.D12366.S2330.E0115.B1.GC")
	require.NoError(t, err)
	assert.Contains(t, stdout, "metop-b")
	assert.Contains(t, stdout, "2017-07-01T00:32:00Z  2017-07-01T02:15:00Z")
	// Crosses midnight into the new year
	assert.Contains(t, stdout, "2012-12-31T23:30:00Z  2013-01-01T01:15:00Z")
}

func TestParseCommandReportsBadNames(t *testing.T) {
	_, _, err := execute(t, "parse", "--format", "json", "not-a-granule.hdf")
	require.Error(t, err)
	assert.Equal(t, exitcode.ParseFailure, exitcode.DetermineExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	p := newProject(t, "exit 0")

	stdout, _, err := execute(t, "config", "validate", "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid")

	stdout, _, err = execute(t, "config", "show", "--config", p.config, "--satellite", "metop-b")
	require.NoError(t, err)
	assert.Contains(t, stdout, "HIR1B_metop-b_latest")

	cfg, err := config.Parse([]byte(stdout[strings.Index(stdout, "\n")+1:]))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Batch.Jobs)
}

func TestMissingConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	t.Chdir(dir)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("HOME", dir)

	_, _, err := execute(t, "contexts", "--satellite", "metop-b", "--start", "2017-07-01", "--end", "2017-07-02")
	require.Error(t, err)
	assert.Equal(t, exitcode.ConfigError, exitcode.DetermineExitCode(err))
}

func TestUnknownSatellite(t *testing.T) {
	p := newProject(t, "exit 0")

	_, _, err := execute(t, "run", "--config", p.config, "--satellite", "noaa-99", "--granule", "2017-07-01")
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestBadTimeFlag(t *testing.T) {
	_, _, err := execute(t, "submit", "--satellite", "metop-b", "--start", "yesterday", "--end", "2017-07-02")
	require.Error(t, err)
	assert.Equal(t, errors.KindParseFailure, errors.KindOf(err))
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"go_version"`)

	stdout, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "hirs-avhrr "))
}

func TestDoctor(t *testing.T) {
	p := newProject(t, "exit 0")

	stdout, _, err := execute(t, "doctor", "--config", p.config, "--satellite", "metop-b", "--format", "json")
	require.NoError(t, err)

	var got doctorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "metop-b", got.Satellite)
	// The batch directories do not exist before the first submission.
	assert.Equal(t, "degraded", string(got.Status))

	byName := map[string]string{}
	for _, c := range got.Checks {
		byName[c.Name] = string(c.Result.Status)
	}
	assert.Equal(t, map[string]string{
		"data-list-hir1b": "healthy",
		"data-list-ptmsx": "healthy",
		"executable":      "healthy",
		"work-dir":        "degraded",
		"checkpoint-dir":  "degraded",
		"log-dir":         "degraded",
		"manifest-dir":    "degraded",
	}, byName)
}

func TestDoctorUnhealthy(t *testing.T) {
	p := newProject(t, "exit 0")
	require.NoError(t, os.RemoveAll(filepath.Join(p.dir, "opt")))

	stdout, _, err := execute(t, "doctor", "--config", p.config, "--satellite", "metop-b")
	require.Error(t, err)
	assert.Equal(t, exitcode.ConfigError, exitcode.DetermineExitCode(err))
	assert.Contains(t, err.Error(), "executable")
	assert.Contains(t, stdout, "no executable for hirs version v20151014")
}
