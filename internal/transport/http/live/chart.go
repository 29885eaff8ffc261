package livehttp

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/shopspring/decimal"

	"hedgebot/internal/logger"
	"hedgebot/internal/store"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorRatio         = "#22d3ee"
	colorFilled        = "#a78bfa"

	chartWidthPx  = 1200
	chartHeightPx = 360
	chartCycles   = 200
)

func (r *Router) handleHedgeChart(c *gin.Context) {
	account, ok := r.accountFilter(c)
	if !ok {
		return
	}
	if account == "" && len(r.order) > 0 {
		account = r.order[0]
	}
	recs, err := r.journal.RecentCycles(c.Request.Context(), account, chartCycles)
	if err != nil {
		logger.Errorf("chart: list cycles failed: %v", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	html, err := renderHedgeChart(account, recs)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// renderHedgeChart draws hedge ratio and filled notional per cycle. recs
// arrive newest first.
func renderHedgeChart(account string, recs []store.CycleRecord) ([]byte, error) {
	xAxis := make([]string, 0, len(recs))
	ratios := make([]opts.LineData, 0, len(recs))
	filled := make([]opts.BarData, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		xAxis = append(xAxis, rec.StartedAt.UTC().Format("01-02 15:04"))
		ratio, err := decimal.NewFromString(rec.HedgeRatio)
		if err != nil {
			ratio = decimal.Zero
		}
		ratios = append(ratios, opts.LineData{Value: ratio.Shift(2).Round(2).InexactFloat64()})
		filled = append(filled, opts.BarData{Value: filledNotional(rec.Executions).Round(2).InexactFloat64()})
	}

	init := func(height int) opts.Initialization {
		return opts.Initialization{
			PageTitle:       "hedgebot · " + account,
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", height),
			BackgroundColor: colorBackground,
		}
	}
	axisLabel := &opts.AxisLabel{Color: colorTextSecondary}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(init(chartHeightPx)),
		charts.WithTitleOpts(opts.Title{
			Title:      "Hedge ratio % · " + account,
			Subtitle:   fmt.Sprintf("%d cycles", len(recs)),
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: axisLabel}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true), AxisLabel: axisLabel}),
	)
	line.SetXAxis(xAxis).AddSeries("hedge ratio", ratios,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorRatio, Width: 2}))

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(init(chartHeightPx*2/3)),
		charts.WithTitleOpts(opts.Title{Title: "Filled USD", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: axisLabel}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: axisLabel}),
	)
	bar.SetXAxis(xAxis).AddSeries("filled", filled,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorFilled}))

	page := components.NewPage()
	page.PageTitle = "hedgebot · " + account
	page.AddCharts(line, bar)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func filledNotional(execs []store.ExecutionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, e := range execs {
		qty, err := decimal.NewFromString(e.FilledQuantity)
		if err != nil {
			continue
		}
		px, err := decimal.NewFromString(e.AveragePrice)
		if err != nil {
			continue
		}
		total = total.Add(qty.Mul(px))
	}
	return total
}
