package prediction

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/apcontrol/internal/models"
)

// maxCandidates bounds the number of doses a single search will score
const maxCandidates = 100000

// ErrInvalidDoseSearch is returned when a dose search has no candidates to score
var ErrInvalidDoseSearch = errors.New("invalid dose search")

// DoseSearch describes the candidate doses and the horizon they are scored over
type DoseSearch struct {
	Target    float64 // BG the forecast should stay close to
	Interval  float64 // Minutes between scored samples (T)
	Steps     int     // Scored samples, at T, 2T, ... Steps·T
	MaxDose   float64 // Candidates stay below this many units
	Increment float64 // Units between candidates
}

// DoseChoice is the outcome of a dose search
type DoseChoice struct {
	Units      float64
	Cost       float64 // Sum of squared deviations from the target
	Candidates int
}

func (s DoseSearch) validate() error {
	for _, v := range []float64{s.Target, s.Interval, s.MaxDose, s.Increment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: values must be finite", ErrInvalidDoseSearch)
		}
	}
	switch {
	case s.Interval <= 0:
		return fmt.Errorf("%w: interval %.1f is not positive", ErrInvalidDoseSearch, s.Interval)
	case s.Steps < 1:
		return fmt.Errorf("%w: need at least one step, got %d", ErrInvalidDoseSearch, s.Steps)
	case s.Increment <= 0:
		return fmt.Errorf("%w: increment %g is not positive", ErrInvalidDoseSearch, s.Increment)
	case s.MaxDose <= 0:
		return fmt.Errorf("%w: max dose %g leaves no candidates", ErrInvalidDoseSearch, s.MaxDose)
	}
	return nil
}

// candidates returns how many doses 0, inc, 2·inc, ... lie below MaxDose
func (s DoseSearch) candidates() int {
	return max(1, int(math.Ceil(s.MaxDose/s.Increment-1e-9)))
}

// DoseCost scores a dose schedule: Σ (BG(i·T) - target)² for i = 1..Steps
func DoseCost(curve Curve, isf, bg float64, doses []models.Dose, search DoseSearch) float64 {
	var cost float64
	for i := 1; i <= search.Steps; i++ {
		d := PredictMultiDose(bg, isf, curve, doses, float64(i)*search.Interval) - search.Target
		cost += d * d
	}
	return cost
}

// ScoreDoses prices every candidate dose.
//
// The last entry of doses is the injection being decided; its units are
// replaced by each candidate 0, inc, 2·inc, ... below MaxDose and the
// schedule is scored with DoseCost. With no doses the candidate is injected
// at minute 0. doses is not modified.
func ScoreDoses(curve Curve, isf, bg float64, doses []models.Dose, search DoseSearch) ([]DoseChoice, error) {
	if err := search.validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(isf) || math.IsInf(isf, 0) || math.IsNaN(bg) || math.IsInf(bg, 0) {
		return nil, fmt.Errorf("%w: BG and ISF must be finite", ErrInvalidDoseSearch)
	}
	n := search.candidates()
	if n > maxCandidates {
		return nil, fmt.Errorf("%w: %d candidates, at most %d", ErrInvalidDoseSearch, n, maxCandidates)
	}

	schedule := make([]models.Dose, len(doses), len(doses)+1)
	copy(schedule, doses)
	if len(schedule) == 0 {
		schedule = append(schedule, models.Dose{Minute: 0})
	}
	slot := &schedule[len(schedule)-1]

	scored := make([]DoseChoice, n)
	for k := range scored {
		slot.Units = float64(k) * search.Increment
		scored[k] = DoseChoice{
			Units:      slot.Units,
			Cost:       DoseCost(curve, isf, bg, schedule, search),
			Candidates: n,
		}
	}
	return scored, nil
}

// Cheapest returns the first choice with the lowest cost
func Cheapest(scored []DoseChoice) DoseChoice {
	if len(scored) == 0 {
		return DoseChoice{}
	}
	best := scored[0]
	for _, c := range scored[1:] {
		if c.Cost < best.Cost {
			best = c
		}
	}
	return best
}

// OptimalDose picks the candidate from ScoreDoses with the lowest cost.
// Ties keep the smaller dose.
func OptimalDose(curve Curve, isf, bg float64, doses []models.Dose, search DoseSearch) (DoseChoice, error) {
	scored, err := ScoreDoses(curve, isf, bg, doses, search)
	if err != nil {
		return DoseChoice{}, err
	}
	return Cheapest(scored), nil
}
