package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/nightscout"
	"github.com/mrcode/apcontrol/internal/notifications"
	"github.com/mrcode/apcontrol/internal/prediction"
	"github.com/mrcode/apcontrol/internal/render"
)

type predictOptions struct {
	curve          string
	doses          []string
	bg             float64
	horizon        float64
	fromNightscout bool
	notify         bool
	png            string
}

func newPredictCommand(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast BG from several boluses, locally or from recorded Nightscout treatments",
		Example: `  apcontrol predict --bg 10 --dose 0:2 --dose 60:1.5
  apcontrol predict --from-nightscout --notify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := root.validSettings()
			if err != nil {
				return err
			}
			return runPredict(cmd, root, settings, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.curve, "curve", curveLinear, "insulin curve: linear or exponential")
	f.StringArrayVar(&opts.doses, "dose", nil, "bolus as minute:units, repeatable")
	f.Float64Var(&opts.bg, "bg", 0, "current blood glucose (default from settings)")
	f.Float64Var(&opts.horizon, "horizon", 0, "forecast length in minutes (default from settings)")
	f.BoolVar(&opts.fromNightscout, "from-nightscout", false, "use the latest reading and recent boluses from Nightscout")
	f.BoolVar(&opts.notify, "notify", false, "raise a desktop notification when the forecast crosses the alert thresholds")
	f.StringVar(&opts.png, "png", "", "write the forecast charts to this PNG file")
	return cmd
}

// alertSender replaces the desktop notification sink when set
var alertSender notifications.Sender

func newNotifier(s *models.Settings) *notifications.Manager {
	m := notifications.NewManager(s)
	if alertSender != nil {
		m.WithSender(alertSender)
	}
	return m
}

// parseDose parses "minute:units"
func parseDose(s string) (models.Dose, error) {
	minute, units, ok := strings.Cut(s, ":")
	if !ok {
		return models.Dose{}, fmt.Errorf("dose %q: want minute:units", s)
	}
	m, err := strconv.ParseFloat(strings.TrimSpace(minute), 64)
	if err != nil {
		return models.Dose{}, fmt.Errorf("dose %q: minute: %w", s, err)
	}
	u, err := strconv.ParseFloat(strings.TrimSpace(units), 64)
	if err != nil {
		return models.Dose{}, fmt.Errorf("dose %q: units: %w", s, err)
	}
	if u < 0 {
		return models.Dose{}, fmt.Errorf("dose %q: negative units", s)
	}
	return models.Dose{Minute: m, Units: u}, nil
}

func runPredict(cmd *cobra.Command, root *rootOptions, s *models.Settings, o *predictOptions) error {
	bg := s.BGReference
	if cmd.Flags().Changed("bg") {
		bg = o.bg
	}
	horizon := s.Simulation.Horizon
	if cmd.Flags().Changed("horizon") {
		horizon = o.horizon
	}

	doses := make([]models.Dose, 0, len(o.doses))
	for _, raw := range o.doses {
		d, err := parseDose(raw)
		if err != nil {
			return err
		}
		doses = append(doses, d)
	}

	if o.fromNightscout {
		recordedBG, recorded, err := recentTreatments(cmd.Context(), root, s)
		if err != nil {
			return err
		}
		bg = recordedBG
		doses = append(doses, recorded...)
	}
	if len(doses) == 0 {
		doses = append(doses, models.Dose{Minute: 0, Units: s.InsulinDose})
	}

	curve, err := newCurve(o.curve, s.Profile)
	if err != nil {
		return err
	}
	result, err := prediction.NewPredictor(curve, s.ISF).
		Predict(bg, doses, horizon, s.Simulation.Interval, s.Alerts.LowThreshold, s.Alerts.HighThreshold)
	if err != nil {
		return err
	}

	header := []string{"minute", "activity", "remaining", "iob", "bg", "insulin_effect"}
	err = writeCSV(cmd.OutOrStdout(), header, len(result.Points), func(i int) []string {
		p := result.Points[i]
		return []string{
			formatFloat(p.Minute),
			formatFloat(p.Activity),
			formatFloat(p.Remaining),
			formatFloat(p.IOB),
			formatFloat(p.Value),
			formatFloat(p.InsulinEffect),
		}
	})
	if err != nil {
		return err
	}

	root.log.Info("forecast",
		"doses", len(doses),
		"iob", result.IOB,
		"min", result.MinValue(),
		"max", result.MaxValue(),
		"low_in", result.LowInMinutes,
		"high_in", result.HighInMinutes)

	if o.notify {
		sent, err := newNotifier(s).CheckPrediction(result)
		if err != nil {
			return err
		}
		if sent != "" {
			root.log.Warn("alert sent", "type", sent)
		}
	}

	if o.png != "" {
		if err := writePNG(o.png, render.PredictionCharts(result, s.Unit)...); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}

// recentTreatments fetches the latest reading and the boluses still acting on it.
// Dose minutes are relative to the reading, so past boluses are negative.
func recentTreatments(ctx context.Context, root *rootOptions, s *models.Settings) (float64, []models.Dose, error) {
	if !s.IsNightscoutConfigured() {
		return 0, nil, fmt.Errorf("nightscout URL not configured (set %s)", models.EnvNightscoutURL)
	}
	client := nightscout.NewClientFromSettings(s.Nightscout).WithLogger(root.log)

	window := time.Duration(s.Profile.TotalActivity) * time.Minute
	now := time.Now()

	entries, err := client.GetEntries(ctx, now.Add(-time.Hour), now, 24)
	if err != nil {
		return 0, nil, fmt.Errorf("fetching entries: %w", err)
	}
	latest, ok := latestReading(entries)
	if !ok {
		return 0, nil, fmt.Errorf("fetching entries: %w: no reading with a glucose value", nightscout.ErrNoData)
	}

	treatments, err := client.GetTreatments(ctx, latest.Time().Add(-window), now)
	if err != nil {
		return 0, nil, fmt.Errorf("fetching treatments: %w", err)
	}

	doses := models.DosesFromTreatments(treatments, latest.Time())
	root.log.Info("nightscout replay",
		"bg", latest.Value(s.Unit),
		"at", latest.Time().Format(time.RFC3339),
		"boluses", len(doses))
	return latest.Value(s.Unit), doses, nil
}

// latestReading returns the newest entry carrying a glucose value.
// entries are sorted oldest first.
func latestReading(entries []models.GlucoseEntry) (models.GlucoseEntry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].SGV > 0 {
			return entries[i], true
		}
	}
	return models.GlucoseEntry{}, false
}
