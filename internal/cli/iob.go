package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/prediction"
	"github.com/mrcode/apcontrol/internal/render"
)

const (
	curveLinear      = "linear"
	curveExponential = "exponential"
)

type iobOptions struct {
	curve    string
	dose     float64
	bg       float64
	horizon  float64
	interval float64
	png      string
}

func newIOBCommand(root *rootOptions) *cobra.Command {
	opts := &iobOptions{}

	cmd := &cobra.Command{
		Use:   "iob",
		Short: "Tabulate insulin activity, remaining effect and the predicted BG of a single bolus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := root.validSettings()
			if err != nil {
				return err
			}
			opts.applyDefaults(cmd, settings)
			return runIOB(cmd, root, settings, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.curve, "curve", curveLinear, "insulin curve: linear or exponential")
	f.Float64Var(&opts.dose, "dose", 0, "bolus in units (default from settings)")
	f.Float64Var(&opts.bg, "bg", 0, "blood glucose at the time of the bolus (default from settings)")
	f.Float64Var(&opts.horizon, "horizon", 0, "minutes to tabulate (default from settings)")
	f.Float64Var(&opts.interval, "interval", 0, "sampling interval in minutes (default from settings)")
	f.StringVar(&opts.png, "png", "", "write activity, remaining and BG charts to this PNG file")
	return cmd
}

func (o *iobOptions) applyDefaults(cmd *cobra.Command, s *models.Settings) {
	f := cmd.Flags()
	if !f.Changed("dose") {
		o.dose = s.InsulinDose
	}
	if !f.Changed("bg") {
		o.bg = s.BGReference
	}
	if !f.Changed("horizon") {
		o.horizon = s.Simulation.Horizon
	}
	if !f.Changed("interval") {
		o.interval = s.Simulation.Interval
	}
}

// newCurve builds the insulin action curve named by kind from the profile
func newCurve(kind string, profile models.InsulinProfile) (prediction.Curve, error) {
	switch kind {
	case curveLinear:
		return prediction.NewLinearCurve(profile)
	case curveExponential:
		return prediction.NewExponentialCurve(profile.PeakActivity, profile.TotalActivity)
	default:
		return nil, fmt.Errorf("unknown curve %q (want %s or %s)", kind, curveLinear, curveExponential)
	}
}

func runIOB(cmd *cobra.Command, root *rootOptions, s *models.Settings, o *iobOptions) error {
	curve, err := newCurve(o.curve, s.Profile)
	if err != nil {
		return err
	}

	doses := []models.Dose{{Minute: 0, Units: o.dose}}
	result, err := prediction.NewPredictor(curve, s.ISF).
		Predict(o.bg, doses, o.horizon, o.interval, s.Alerts.LowThreshold, s.Alerts.HighThreshold)
	if err != nil {
		return err
	}

	header := []string{"minute", "activity", "remaining", "iob", "bg"}
	err = writeCSV(cmd.OutOrStdout(), header, len(result.Points), func(i int) []string {
		p := result.Points[i]
		return []string{
			formatFloat(p.Minute),
			formatFloat(curve.Activity(p.Minute)),
			formatFloat(curve.Remaining(p.Minute)),
			formatFloat(p.IOB),
			formatFloat(prediction.PredictBG(o.bg, s.ISF, o.dose, curve, p.Minute)),
		}
	})
	if err != nil {
		return err
	}

	root.log.Info("iob curve",
		"curve", o.curve,
		"dose", o.dose,
		"duration", curve.Duration(),
		"bg_start", o.bg,
		"bg_end", result.Points[len(result.Points)-1].Value)

	if o.png != "" {
		if err := writePNG(o.png, render.PredictionCharts(result, s.Unit)...); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}
