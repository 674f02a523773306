// Package timeline draws the semantic events of an episode as a Gantt chart,
// either as an interactive go-echarts page or as a static PNG.
package timeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/semlog/internal/events"
)

// AssetsHost serves the echarts javascript. Empty uses the go-echarts default.
var AssetsHost = ""

// Row is one bar of the chart.
type Row struct {
	Label string
	Kind  events.Kind
	Start float64
	End   float64
}

// Rows orders evs by start time and labels each one with its kind and
// participant names.
func Rows(evs []events.Event) []Row {
	sorted := append([]events.Event(nil), evs...)
	events.SortByStart(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, ev := range sorted {
		names := make([]string, 0, len(ev.Participants))
		for _, p := range ev.Participants {
			names = append(names, p.Name)
		}
		label := string(ev.Kind)
		if len(names) > 0 {
			label += " " + strings.Join(names, "/")
		}
		rows = append(rows, Row{Label: label, Kind: ev.Kind, Start: ev.Start, End: ev.End})
	}
	return rows
}

// RenderHTML writes an echarts page with one horizontal bar per event. A
// transparent offset series carries each start so the visible bar spans
// [Start, End].
func RenderHTML(w io.Writer, title string, evs []events.Event) error {
	rows := Rows(evs)
	labels := make([]string, len(rows))
	offsets := make([]opts.BarData, len(rows))
	spans := make([]opts.BarData, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
		offsets[i] = opts.BarData{Value: r.Start, ItemStyle: &opts.ItemStyle{Color: "transparent"}}
		spans[i] = opts.BarData{Value: r.End - r.Start, Name: fmt.Sprintf("%.3f - %.3f", r.Start, r.End)}
	}

	height := 120 + 28*len(rows)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: fmt.Sprintf("%dpx", height), AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("events=%d", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithGridOpts(opts.Grid{Left: "25%"}),
	)
	bar.SetXAxis(labels).
		AddSeries("offset", offsets, charts.WithBarChartOpts(opts.BarChart{Stack: "event"})).
		AddSeries("duration", spans, charts.WithBarChartOpts(opts.BarChart{Stack: "event"})).
		XYReversal()

	page := components.NewPage()
	if AssetsHost != "" {
		page.SetAssetsHost(AssetsHost)
	}
	page.AddCharts(bar)
	return page.Render(w)
}

// SavePNG draws one line segment per event on a nominal axis of kinds and
// writes the image to path.
func SavePNG(path, title string, evs []events.Event) error {
	rows := Rows(evs)

	var kinds []events.Kind
	index := make(map[events.Kind]int)
	for _, k := range events.Kinds {
		for _, r := range rows {
			if r.Kind == k {
				index[k] = len(kinds)
				kinds = append(kinds, k)
				break
			}
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"

	for _, r := range rows {
		y, ok := index[r.Kind]
		if !ok {
			continue
		}
		seg, err := plotter.NewLine(plotter.XYs{{X: r.Start, Y: float64(y)}, {X: r.End, Y: float64(y)}})
		if err != nil {
			return fmt.Errorf("failed to draw %s: %w", r.Label, err)
		}
		seg.Width = vg.Points(6)
		seg.Color = plotutil.Color(y)
		p.Add(seg)
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	if len(names) > 0 {
		p.NominalY(names...)
	}

	height := 2*vg.Inch + vg.Length(len(kinds))*vg.Inch/2
	if err := p.Save(12*vg.Inch, height, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
