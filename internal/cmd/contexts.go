package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the collocation contexts of an interval",
	Long: `List every HIRS granule in [start, end] that can be collocated.

A context is one HIRS level-1b granule start time together with the
satellite and the HIRS and collocation versions from the configuration.

Examples:
  hirs-avhrr contexts --satellite metop-b --start 2017-07-01 --end 2017-07-02
  hirs-avhrr contexts --satellite noaa-19 --start 2012-01-01 --end 2012-02-01 --format json`,
	RunE: runContexts,
}

var (
	contextsSatellite string
	contextsStart     string
	contextsEnd       string
	contextsFormat    string
)

func init() {
	contextsCmd.Flags().StringVar(&contextsSatellite, "satellite", "", "satellite name, e.g. metop-b")
	contextsCmd.Flags().StringVar(&contextsStart, "start", "", "interval start (RFC 3339 or YYYY-MM-DD)")
	contextsCmd.Flags().StringVar(&contextsEnd, "end", "", "exclusive interval end (RFC 3339 or YYYY-MM-DD)")
	contextsCmd.Flags().StringVar(&contextsFormat, "format", "text", "output format: text, json, yaml")
	_ = contextsCmd.MarkFlagRequired("satellite")
	_ = contextsCmd.MarkFlagRequired("start")
	_ = contextsCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(contextsCmd)
}

// contextList is the output of the contexts command.
type contextList struct {
	Satellite string           `json:"satellite" yaml:"satellite"`
	Interval  granule.Interval `json:"interval" yaml:"interval"`
	Contexts  []collo.Context  `json:"contexts" yaml:"contexts"`
}

// RenderText implements ux.TextRenderer.
func (l contextList) RenderText(w io.Writer) error {
	if len(l.Contexts) == 0 {
		_, err := fmt.Fprintf(w, "No contexts for %s in %s\n", l.Satellite, l.Interval)
		return err
	}
	fmt.Fprintln(w, ux.TitleStyle.Render(fmt.Sprintf("%d context(s) for %s in %s", len(l.Contexts), l.Satellite, l.Interval)))
	for _, c := range l.Contexts {
		if _, err := fmt.Fprintf(w, "  %s  hirs=%s collo=%s  %s\n",
			c.Granule.Format(time.RFC3339), c.HirsVersion, c.ColloVersion, c.Key()); err != nil {
			return err
		}
	}
	return nil
}

func runContexts(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd, contextsFormat)
	if err != nil {
		return err
	}
	interval, err := parseInterval(contextsStart, contextsEnd)
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, contextsSatellite)
	if err != nil {
		return err
	}
	defer p.close()

	contexts, err := p.finder.FindContexts(cmd.Context(), interval, p.satellite)
	if err != nil {
		return err
	}
	collo.SortContexts(contexts)
	if contexts == nil {
		contexts = []collo.Context{}
	}

	return formatter.Format(contextList{
		Satellite: p.satellite,
		Interval:  interval,
		Contexts:  contexts,
	})
}
