package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"t212cache/internal/api"
	"t212cache/internal/store"
)

// Export renders cached dividend history as CSV and/or a cumulative
// income PNG chart. The cache is refreshed first when stale.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	comps, err := a.buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.close()

	if comps.store == nil {
		return errors.New("cache is disabled; cannot export")
	}

	if res := comps.engine.SyncIfStale(ctx, store.TableDividends); res != nil && res.Err != nil {
		a.Logger.Warn().Err(res.Err).Msg("refresh before export failed, exporting cached data")
	}

	dividends, err := comps.store.Dividends("")
	if err != nil {
		return err
	}
	if len(dividends) == 0 {
		a.Logger.Info().Msg("no cached dividends to export")
		return nil
	}

	// Store ordering is newest first; exports read better oldest first.
	sort.Slice(dividends, func(i, j int) bool {
		return beforePaidOn(dividends[i].PaidOn, dividends[j].PaidOn)
	})

	downsampled := downsampleDividends(dividends, opts.MaxPoints)
	a.Logger.Info().Int("total", len(dividends)).Int("exported", len(downsampled)).Msg("exporting dividends")

	if opts.CSVPath != "" {
		if err := writeDividendsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeDividendsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func beforePaidOn(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

func downsampleDividends(dividends []api.DividendItem, max int) []api.DividendItem {
	if max <= 0 || len(dividends) <= max {
		return dividends
	}

	result := make([]api.DividendItem, 0, max)
	step := float64(len(dividends)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(dividends) {
			idx = len(dividends) - 1
		}
		result = append(result, dividends[idx])
	}
	return result
}

func writeDividendsCSV(path string, dividends []api.DividendItem) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"paid_on", "reference", "ticker", "type", "amount", "amount_eur", "gross_per_share", "quantity"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, dividend := range dividends {
		paidOn := ""
		if dividend.PaidOn != nil {
			paidOn = dividend.PaidOn.UTC().Format(time.RFC3339)
		}
		record := []string{
			paidOn,
			dividend.Reference,
			dividend.Ticker,
			dividend.Type,
			dividend.Amount.String(),
			dividend.AmountInEuro.String(),
			dividend.GrossAmountPerShare.String(),
			dividend.Quantity.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeDividendsPNG(path string, dividends []api.DividendItem) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(dividends))
	perPayment := make([]float64, 0, len(dividends))
	cumulative := make([]float64, 0, len(dividends))

	running := decimal.Zero
	for _, dividend := range dividends {
		if dividend.PaidOn == nil {
			continue
		}
		running = running.Add(dividend.Amount)
		x = append(x, *dividend.PaidOn)
		perPayment = append(perPayment, dividend.Amount.InexactFloat64())
		cumulative = append(cumulative, running.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("need at least two dated dividends to chart")
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Cumulative income",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Per payment",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Cumulative",
				XValues: x,
				YValues: cumulative,
			},
			chart.TimeSeries{
				Name:    "Per payment",
				XValues: x,
				YValues: perPayment,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
