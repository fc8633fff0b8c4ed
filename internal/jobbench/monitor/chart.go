package monitor

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoSamples = errors.New("no samples to render")

const chartTitle = "PostgreSQL Performance Monitoring"

type series struct {
	name  string
	value func(Sample) float64
}

type panel struct {
	title  string
	yLabel string
	series []series
}

var panels = []panel{
	{
		title:  "Container CPU Usage",
		yLabel: "CPU %",
		series: []series{{name: "cpu", value: func(s Sample) float64 { return s.CPUPercent }}},
	},
	{
		title:  "Container Memory Usage",
		yLabel: "Memory %",
		series: []series{{name: "memory", value: func(s Sample) float64 { return s.MemoryPercent }}},
	},
	{
		title:  "Database Connections",
		yLabel: "Connections",
		series: []series{
			{name: "total", value: func(s Sample) float64 { return float64(s.TotalConnections) }},
			{name: "active", value: func(s Sample) float64 { return float64(s.ActiveConnections) }},
		},
	},
	{
		title:  "Row-Level Lock Contention",
		yLabel: "Lock waits",
		series: []series{{name: "lock waits", value: func(s Sample) float64 { return float64(s.LockWaits) }}},
	},
}

// RenderChart writes a PNG with one stacked panel per metric, sharing a wall-clock x axis.
func RenderChart(samples []Sample, path string) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p, err := newPanelPlot(pn, samples)
		if err != nil {
			return errors.WithMessagef(err, "building %s panel", pn.title)
		}
		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.New(12*vg.Inch, 16*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Points(36),
		PadBottom: vg.Points(8),
		PadLeft:   vg.Points(8),
		PadRight:  vg.Points(16),
		PadY:      vg.Points(16),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	title := plots[0][0].Title.TextStyle
	title.Font.Size = vg.Points(18)
	title.XAlign = draw.XCenter
	title.YAlign = draw.YTop
	dc.FillText(title, vg.Point{X: (dc.Min.X + dc.Max.X) / 2, Y: dc.Max.Y - vg.Points(8)}, chartTitle)

	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.WithStack(f.Close())
}

func newPanelPlot(pn panel, samples []Sample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pn.title
	p.Y.Label.Text = pn.yLabel
	p.Y.Min = 0
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05", Time: plot.UnixTimeIn(time.Local)}
	p.Add(plotter.NewGrid())

	for i, s := range pn.series {
		points := make(plotter.XYs, len(samples))
		for j, sample := range samples {
			points[j].X = unixSeconds(sample.Timestamp)
			points[j].Y = s.value(sample)
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		if len(pn.series) > 1 {
			p.Legend.Add(s.name, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
