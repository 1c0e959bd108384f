package cli

import (
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/mrcode/apcontrol/internal/render"
)

const (
	chartWidth  = 900
	panelHeight = 320
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// writeCSV writes the header and the rows produced by row(i) for i in [0, n)
func writeCSV(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writePNG renders charts stacked vertically into path
func writePNG(path string, charts ...render.Chart) error {
	img, err := render.RenderPanels(chartWidth, panelHeight*len(charts), charts...)
	if err != nil {
		return err
	}
	return savePNG(path, img)
}

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := render.EncodePNG(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
