package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var parseCmd = &cobra.Command{
	Use:   "parse <filename>...",
	Short: "Print the observation interval encoded in granule names",
	Long: `Decode NOAA/EUMETSAT granule names and print their satellite and interval.

Directories are stripped, so paths from a data list can be passed as is.
An end time earlier than the start time rolls over to the next day.

Examples:
  hirs-avhrr parse NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV
  hirs-avhrr parse --format json NSS.GHRR.NN.D12001.S2330.E0115.B3456789.GC.level2.hdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

var parseFormat string

func init() {
	parseCmd.Flags().StringVar(&parseFormat, "format", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(parseCmd)
}

// parsedName is one decoded granule name.
type parsedName struct {
	Name          string    `json:"name" yaml:"name"`
	Instrument    string    `json:"instrument" yaml:"instrument"`
	SatelliteCode string    `json:"satellite_code" yaml:"satellite_code"`
	Satellite     string    `json:"satellite,omitempty" yaml:"satellite,omitempty"`
	Stamp         string    `json:"stamp" yaml:"stamp"`
	Begin         time.Time `json:"begin" yaml:"begin"`
	End           time.Time `json:"end" yaml:"end"`
}

type parsedNames []parsedName

// RenderText implements ux.TextRenderer.
func (p parsedNames) RenderText(w io.Writer) error {
	for _, n := range p {
		sat := n.Satellite
		if sat == "" {
			sat = ux.WarningStyle.Render(n.SatelliteCode + "?")
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", n.Name, n.Instrument, sat,
			n.Begin.Format(time.RFC3339), n.End.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd, parseFormat)
	if err != nil {
		return err
	}

	var (
		out  = parsedNames{}
		errs error
	)
	for _, arg := range args {
		info, err := granule.ParseFilename(filepath.Base(arg))
		if err != nil {
			multierr.AppendInto(&errs, err)
			continue
		}
		out = append(out, parsedName{
			Name:          info.Name,
			Instrument:    info.Instrument,
			SatelliteCode: info.SatelliteCode,
			Satellite:     info.Satellite,
			Stamp:         info.Stamp(),
			Begin:         info.Interval.Left,
			End:           info.Interval.Right,
		})
	}

	if len(out) > 0 {
		if err := formatter.Format(out); err != nil {
			return err
		}
	}
	return errs
}
