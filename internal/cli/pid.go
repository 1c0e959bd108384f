package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/mrcode/apcontrol/internal/control"
	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/nightscout"
	"github.com/mrcode/apcontrol/internal/render"
	"github.com/mrcode/apcontrol/internal/timeseries"
)

const (
	sourceSynthetic  = "synthetic"
	sourceStep       = "step"
	sourceNightscout = "nightscout"
)

type pidOptions struct {
	source string
	hours  int
	png    string
}

func newPIDCommand(root *rootOptions) *cobra.Command {
	opts := &pidOptions{}

	cmd := &cobra.Command{
		Use:   "pid",
		Short: "Run the PID insulin controller with anti-reset windup over a glucose series",
		Long: `Run the PID insulin controller over a glucose series. The synthetic source ` +
			`oscillates sin(t·rate)·amplitude + SP on the configured grid; the step source ` +
			`holds SP and jumps by the amplitude halfway through; the nightscout ` +
			`source replays the recorded sensor values of the last hours.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := root.validSettings()
			if err != nil {
				return err
			}
			return runPID(cmd, root, settings, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", sourceSynthetic, "glucose source: synthetic, step or nightscout")
	f.IntVar(&opts.hours, "hours", 6, "hours of recorded data to replay with --source nightscout")
	f.StringVar(&opts.png, "png", "", "write the SP/PV and output charts to this PNG file")
	return cmd
}

// syntheticSeries is the oscillating PV around the set point on the configured grid
func syntheticSeries(s *models.Settings) timeseries.Series {
	grid := timeseries.Linspace(0, s.Simulation.Duration, s.Simulation.Steps+1)
	return timeseries.Series{
		Time:   grid,
		Values: timeseries.Sine(grid, s.Simulation.PVAmplitude, s.Simulation.PVRate, s.SetPoint),
	}
}

// stepSeries holds the set point and rises by the amplitude halfway through the grid
func stepSeries(s *models.Settings) timeseries.Series {
	grid := timeseries.Linspace(0, s.Simulation.Duration, s.Simulation.Steps+1)
	values := timeseries.Step(len(grid), len(grid)/2, s.Simulation.PVAmplitude)
	floats.AddConst(s.SetPoint, values)
	return timeseries.Series{Time: grid, Values: values}
}

func recordedSeries(ctx context.Context, root *rootOptions, s *models.Settings, hours int) (timeseries.Series, error) {
	if !s.IsNightscoutConfigured() {
		return timeseries.Series{}, fmt.Errorf("nightscout URL not configured (set %s)", models.EnvNightscoutURL)
	}
	if hours <= 0 {
		return timeseries.Series{}, fmt.Errorf("hours must be positive, got %d", hours)
	}

	client := nightscout.NewClientFromSettings(s.Nightscout).WithLogger(root.log)
	entries, err := client.GetEntriesHours(ctx, hours)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("fetching entries: %w", err)
	}

	series := timeseries.FromEntries(entries, s.Unit)
	root.log.Info("nightscout replay", "entries", len(entries), "samples", series.Len())
	return series, nil
}

func runPID(cmd *cobra.Command, root *rootOptions, s *models.Settings, o *pidOptions) error {
	var pv timeseries.Series
	switch o.source {
	case sourceSynthetic:
		pv = syntheticSeries(s)
	case sourceStep:
		pv = stepSeries(s)
	case sourceNightscout:
		var err error
		if pv, err = recordedSeries(cmd.Context(), root, s, o.hours); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown source %q (want %s, %s or %s)", o.source, sourceSynthetic, sourceStep, sourceNightscout)
	}

	resp, err := control.RunSeries(s.Controller, s.SetPoint, pv)
	if err != nil {
		return err
	}

	header := []string{"time", "sp", "pv", "error", "integral", "p", "i", "d", "op", "saturated"}
	err = writeCSV(cmd.OutOrStdout(), header, resp.Len(), func(i int) []string {
		return []string{
			formatFloat(resp.Time[i]),
			formatFloat(resp.SetPoint[i]),
			formatFloat(resp.PV[i]),
			formatFloat(resp.Error[i]),
			formatFloat(resp.Integral[i]),
			formatFloat(resp.P[i]),
			formatFloat(resp.I[i]),
			formatFloat(resp.D[i]),
			formatFloat(resp.Output[i]),
			strconv.FormatBool(resp.Saturated[i]),
		}
	})
	if err != nil {
		return err
	}

	stats := resp.Stats()
	pvMin, pvMax := pv.Bounds()
	root.log.Info("pid run",
		"source", o.source,
		"steps", resp.Len(),
		"dt", resp.DeltaTime,
		"pv_min", pvMin,
		"pv_max", pvMax,
		"saturated", stats.SaturatedSteps,
		"op_min", stats.MinOutput,
		"op_max", stats.MaxOutput,
		"integral_min", stats.MinIntegral,
		"integral_max", stats.MaxIntegral,
		"mae", stats.MeanAbsError)

	if o.png != "" {
		if err := writePNG(o.png, render.ControllerCharts(resp, s.Controller)...); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}
