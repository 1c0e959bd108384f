package cli

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/prediction"
	"github.com/mrcode/apcontrol/internal/render"
)

type mpcOptions struct {
	curve          string
	doses          []string
	at             float64
	bg             float64
	target         float64
	maxDose        float64
	increment      float64
	horizon        float64
	interval       float64
	fromNightscout bool
	png            string
}

func newMPCCommand(root *rootOptions) *cobra.Command {
	opts := &mpcOptions{}

	cmd := &cobra.Command{
		Use:   "mpc",
		Short: "Pick the bolus whose forecast stays closest to the target BG",
		Long: `mpc scores every candidate bolus 0, increment, 2·increment, ... below --max-dose ` +
			`by the sum of squared deviations of the forecast from the target, sampled every ` +
			`interval up to the horizon. Earlier boluses given with --dose keep acting on the forecast. ` +
			`The cost of every candidate is written as CSV and the cheapest one is logged.`,
		Example: `  apcontrol mpc --bg 12 --target 6
  apcontrol mpc --bg 12 --dose -60:1 --max-dose 5 --increment 0.5
  apcontrol mpc --from-nightscout --png mpc.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := root.validSettings()
			if err != nil {
				return err
			}
			opts.applyDefaults(cmd, settings)
			return runMPC(cmd, root, settings, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.curve, "curve", curveLinear, "insulin curve: linear or exponential")
	f.StringArrayVar(&opts.doses, "dose", nil, "earlier bolus as minute:units, repeatable")
	f.Float64Var(&opts.at, "at", 0, "minute of the bolus being chosen")
	f.Float64Var(&opts.bg, "bg", 0, "current blood glucose (default from settings)")
	f.Float64Var(&opts.target, "target", 0, "target blood glucose (default the set point)")
	f.Float64Var(&opts.maxDose, "max-dose", 10, "candidates stay below this many units")
	f.Float64Var(&opts.increment, "increment", 0.1, "units between candidates")
	f.Float64Var(&opts.horizon, "horizon", 0, "scored minutes (default from settings)")
	f.Float64Var(&opts.interval, "interval", 0, "minutes between scored samples (default from settings)")
	f.BoolVar(&opts.fromNightscout, "from-nightscout", false, "use the latest reading and recent boluses from Nightscout")
	f.StringVar(&opts.png, "png", "", "write the forecast with the chosen bolus to this PNG file")
	return cmd
}

func (o *mpcOptions) applyDefaults(cmd *cobra.Command, s *models.Settings) {
	f := cmd.Flags()
	if !f.Changed("bg") {
		o.bg = s.BGReference
	}
	if !f.Changed("target") {
		o.target = s.SetPoint
	}
	if !f.Changed("horizon") {
		o.horizon = s.Simulation.Horizon
	}
	if !f.Changed("interval") {
		o.interval = s.Simulation.Interval
	}
}

func runMPC(cmd *cobra.Command, root *rootOptions, s *models.Settings, o *mpcOptions) error {
	doses := make([]models.Dose, 0, len(o.doses)+1)
	for _, raw := range o.doses {
		d, err := parseDose(raw)
		if err != nil {
			return err
		}
		doses = append(doses, d)
	}

	bg := o.bg
	if o.fromNightscout {
		recordedBG, recorded, err := recentTreatments(cmd.Context(), root, s)
		if err != nil {
			return err
		}
		bg = recordedBG
		doses = append(doses, recorded...)
	}
	doses = append(doses, models.Dose{Minute: o.at})

	curve, err := newCurve(o.curve, s.Profile)
	if err != nil {
		return err
	}

	search := prediction.DoseSearch{
		Target:    o.target,
		Interval:  o.interval,
		MaxDose:   o.maxDose,
		Increment: o.increment,
	}
	if o.interval > 0 {
		search.Steps = int(math.Floor(o.horizon/o.interval + 1e-9))
	}

	scored, err := prediction.ScoreDoses(curve, s.ISF, bg, doses, search)
	if err != nil {
		return err
	}
	best := prediction.Cheapest(scored)

	err = writeCSV(cmd.OutOrStdout(), []string{"units", "cost"}, len(scored), func(i int) []string {
		return []string{formatFloat(scored[i].Units), formatFloat(scored[i].Cost)}
	})
	if err != nil {
		return err
	}

	doses[len(doses)-1].Units = best.Units
	result, err := prediction.NewPredictor(curve, s.ISF).
		Predict(bg, doses, o.horizon, o.interval, s.Alerts.LowThreshold, s.Alerts.HighThreshold)
	if err != nil {
		return err
	}

	root.log.Info("dose chosen",
		"units", best.Units,
		"at", o.at,
		"cost", best.Cost,
		"candidates", best.Candidates,
		"target", o.target,
		"bg_start", bg,
		"bg_end", result.Points[len(result.Points)-1].Value)

	if o.png != "" {
		if err := writePNG(o.png, render.PredictionCharts(result, s.Unit)...); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}
