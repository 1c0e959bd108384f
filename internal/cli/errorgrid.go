package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/errorgrid"
	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/render"
)

type errorGridOptions struct {
	input string
	unit  string
	seed  int64
	count int
	title string
	png   string
}

func newErrorGridCommand(root *rootOptions) *cobra.Command {
	opts := &errorGridOptions{}

	cmd := &cobra.Command{
		Use:   "errorgrid",
		Short: "Classify reference/measured BG pairs on the Clarke error grid",
		Long: `Classify reference/measured blood glucose pairs (mg/dL) into Clarke zones A-E. ` +
			`Pairs are read from a two-column CSV file with --input, or generated: a ` +
			`uniform reference over 0-400 mg/dL with a measurement off by up to ±75 mg/dL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runErrorGrid(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "CSV file of reference,measured pairs")
	f.StringVar(&opts.unit, "unit", models.UnitMgDL, "unit of the --input pairs: mg/dL or mmol/L")
	f.Int64Var(&opts.seed, "seed", 0, "random seed for generated pairs (0 uses the clock)")
	f.IntVar(&opts.count, "count", 100, "number of generated pairs")
	f.StringVar(&opts.title, "title", "Clarke error grid", "chart title")
	f.StringVar(&opts.png, "png", "", "write the error grid scatter to this PNG file")
	return cmd
}

// readPairs reads reference,measured rows. A non-numeric first row is a header.
func readPairs(r io.Reader) (ref, measured []float64, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		rv, rerr := strconv.ParseFloat(record[0], 64)
		mv, merr := strconv.ParseFloat(record[1], 64)
		if rerr != nil || merr != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", line, errors.Join(rerr, merr))
		}
		ref = append(ref, rv)
		measured = append(measured, mv)
	}
	return ref, measured, nil
}

func loadPairs(path string) (ref, measured []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	ref, measured, err = readPairs(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ref, measured, nil
}

func runErrorGrid(cmd *cobra.Command, root *rootOptions, o *errorGridOptions) error {
	var ref, measured []float64
	if o.input != "" {
		var err error
		if !models.IsValidUnit(o.unit) {
			return fmt.Errorf("unknown unit %q (want %s or %s)", o.unit, models.UnitMgDL, models.UnitMmolL)
		}
		if ref, measured, err = loadPairs(o.input); err != nil {
			return err
		}
		if o.unit == models.UnitMmolL {
			for i := range ref {
				ref[i] = models.ToMgdl(ref[i])
				measured[i] = models.ToMgdl(measured[i])
			}
		}
	} else {
		if o.count <= 0 {
			return fmt.Errorf("count must be positive, got %d", o.count)
		}
		seed := o.seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		root.log.Debug("generating pairs", "seed", seed, "count", o.count)
		//nolint:gosec // Demo data, not security sensitive
		ref, measured = errorgrid.Synthetic(rand.New(rand.NewSource(seed)), o.count)
	}

	zones, err := errorgrid.ClassifyAll(ref, measured)
	if err != nil {
		return err
	}

	err = writeCSV(cmd.OutOrStdout(), []string{"reference", "measured", "zone"}, len(zones), func(i int) []string {
		return []string{formatFloat(ref[i]), formatFloat(measured[i]), zones[i].String()}
	})
	if err != nil {
		return err
	}

	summary := errorgrid.Summarize(zones)
	mard, err := errorgrid.MARD(ref, measured)
	if err != nil {
		return err
	}

	args := []any{"pairs", summary.Total}
	for _, z := range errorgrid.Zones {
		args = append(args, z.String(), fmt.Sprintf("%d (%.1f%%)", summary.Counts[z], summary.Percent(z)))
	}
	args = append(args, "a_plus_b", fmt.Sprintf("%.1f%%", summary.ClinicallyAcceptable()), "mard", fmt.Sprintf("%.1f%%", mard))
	root.log.Info("error grid", args...)

	if o.png != "" {
		img, err := render.ErrorGrid(ref, measured, o.title, chartWidth)
		if err != nil {
			return err
		}
		if err := savePNG(o.png, img); err != nil {
			return err
		}
		root.log.Info("chart written", "path", o.png)
	}
	return nil
}
