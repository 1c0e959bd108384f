package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/control"
	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/render"
	"github.com/mrcode/apcontrol/internal/timeseries"
)

type pOnlyOptions struct {
	duration float64
	steps    int
	rate     float64
	png      string
}

func newPOnlyCommand(root *rootOptions) *cobra.Command {
	opts := &pOnlyOptions{}

	cmd := &cobra.Command{
		Use:   "ponly",
		Short: "Evaluate the unbounded proportional-only law u = basal - ISF·(SP - PV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := root.validSettings()
			if err != nil {
				return err
			}
			return runPOnly(cmd, root, settings, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.duration, "duration", 60, "minutes to simulate")
	f.IntVar(&opts.steps, "steps", 100, "number of intervals on the time grid")
	f.Float64Var(&opts.rate, "rate", 0.2, "angular rate of the synthetic glucose sine (rad/min)")
	f.StringVar(&opts.png, "png", "", "write the output and glucose charts to this PNG file")
	return cmd
}

func runPOnly(cmd *cobra.Command, root *rootOptions, s *models.Settings, o *pOnlyOptions) error {
	grid := timeseries.Linspace(0, o.duration, o.steps+1)
	sp := timeseries.Constant(len(grid), s.SetPoint)
	pv := timeseries.Sine(grid, s.Simulation.PVAmplitude, o.rate, s.SetPoint)

	// Kc is the negated insulin sensitivity factor
	u, err := control.ProportionalOnly(s.Controller.BasalRate, -s.ISF, sp, pv)
	if err != nil {
		return err
	}

	err = writeCSV(cmd.OutOrStdout(), []string{"time", "sp", "pv", "u"}, len(grid), func(i int) []string {
		return []string{formatFloat(grid[i]), formatFloat(sp[i]), formatFloat(pv[i]), formatFloat(u[i])}
	})
	if err != nil {
		return err
	}

	negative := 0
	for _, v := range u {
		if v < 0 {
			negative++
		}
	}
	root.log.Info("p-only run", "steps", len(u), "negative_outputs", negative)
	if negative > 0 {
		root.log.Warn("proportional-only law requested negative insulin", "steps", negative)
	}

	if o.png != "" {
		charts := []render.Chart{
			{
				Title:  "P-only controller output",
				YLabel: "u(t)",
				Series: []render.Series{{Label: "Impulse (u)", X: grid, Y: u, Color: render.ColorBlack}},
			},
			{
				XLabel: "Time (min)",
				YLabel: s.Unit,
				Series: []render.Series{
					{Label: "BG measurements", X: grid, Y: pv, Color: render.ColorBlue},
					{Label: "Set point", X: grid, Y: sp, Color: render.ColorRed, Dashed: true},
				},
			},
		}
		if err := writePNG(o.png, charts...); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}
