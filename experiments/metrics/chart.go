package metrics

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is one line of a chart, with a value per x-axis label.
type Series struct {
	Name   string
	Values []float64
}

// WriteReturnChart renders mean returns per planning budget as an HTML page.
func WriteReturnChart(path, title string, budgets []int, series []Series) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "budget"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "return"}),
	)

	labels := make([]string, len(budgets))
	for i, budget := range budgets {
		labels[i] = strconv.Itoa(budget)
	}
	line.SetXAxis(labels)
	for _, s := range series {
		if len(s.Values) != len(budgets) {
			return fmt.Errorf("series %s has %d values for %d budgets", s.Name, len(s.Values), len(budgets))
		}
		items := make([]opts.LineData, 0, len(s.Values))
		for _, value := range s.Values {
			items = append(items, opts.LineData{Value: value})
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
