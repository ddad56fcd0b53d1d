package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collocate a single HIRS granule",
	Long: `Run the collocation executable for one context.

The granule time must be the start time of a HIRS level-1b granule, as
printed by 'hirs-avhrr contexts'. Inputs that are catalogued but not yet on
disk fail with exit code 3 so schedulers can retry later.

Examples:
  hirs-avhrr run --satellite metop-b --granule 2017-07-01T00:32:00Z
  hirs-avhrr run --satellite metop-b --granule 2017-07-01T00:32:00Z --workdir /scratch/collo`,
	RunE: runRun,
}

var (
	runSatellite string
	runGranule   string
	runWorkdir   string
	runFormat    string
)

func init() {
	runCmd.Flags().StringVar(&runSatellite, "satellite", "", "satellite name, e.g. metop-b")
	runCmd.Flags().StringVar(&runGranule, "granule", "", "HIRS granule start time (RFC 3339)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "working directory (default work_dir from the configuration)")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "output format: text, json, yaml")
	_ = runCmd.MarkFlagRequired("satellite")
	_ = runCmd.MarkFlagRequired("granule")

	rootCmd.AddCommand(runCmd)
}

// runResult is the output of the run command.
type runResult struct {
	Context  collo.Context     `json:"context" yaml:"context"`
	Output   string            `json:"output" yaml:"output"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Manifest string            `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// RenderText implements ux.TextRenderer.
func (r runResult) RenderText(w io.Writer) error {
	fmt.Fprintln(w, ux.SuccessStyle.Render("✓ collocated "+r.Context.String()))
	fmt.Fprintln(w, ux.Field("Output", r.Output))
	keys := make([]string, 0, len(r.Attrs))
	for k := range r.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, ux.Field(k, r.Attrs[k]))
	}
	if r.Manifest != "" {
		fmt.Fprintln(w, ux.Field("Manifest", r.Manifest))
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd, runFormat)
	if err != nil {
		return err
	}
	t, err := parseTime("granule", runGranule)
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, runSatellite)
	if err != nil {
		return err
	}
	defer p.close()

	c := collo.NewContext(t, p.satellite, p.cfg.HirsVersion, p.cfg.ColloVersion)
	workdir := runWorkdir
	if workdir == "" {
		workdir = p.runner.Options().WorkDir
	}

	out, err := p.runner.RunIn(cmd.Context(), c, workdir)
	if err != nil {
		return err
	}
	return formatter.Format(runResult{
		Context:  c,
		Output:   out.Path,
		Attrs:    out.Attrs,
		Manifest: out.Manifest,
	})
}
