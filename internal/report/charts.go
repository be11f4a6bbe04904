package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/geotag/internal/db"
)

// WriteHTML renders the track as an interactive scatter chart. Each point
// carries its frame index so the tooltip identifies the image.
func WriteHTML(w io.Writer, s Summary, recs []db.GeoRecord) error {
	data := make([]opts.ScatterData, 0, len(recs))
	for _, r := range recs {
		data = append(data, opts.ScatterData{
			Name:  fmt.Sprintf("frame %d", r.FrameIndex),
			Value: []interface{}{r.Longitude, r.Latitude, r.FrameIndex},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "geotag session " + s.SessionID, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tagged frames", Subtitle: fmt.Sprintf("session=%s frames=%d track=%.0fm", s.SessionID, s.Frames, s.TrackLength)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Min: s.MinLon, Max: s.MaxLon}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Min: s.MinLat, Max: s.MaxLat}),
	)
	scatter.AddSeries("frames", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter.Render(w)
}

// WritePNG draws the track as a line with a marker per frame.
func WritePNG(w io.Writer, s Summary, recs []db.GeoRecord) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s (%d frames, %.0f m)", s.SessionID, s.Frames, s.TrackLength)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	pts := make(plotter.XYs, len(recs))
	for i, r := range recs {
		pts[i].X = r.Longitude
		pts[i].Y = r.Latitude
	}
	if len(pts) > 0 {
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("track line: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(line, scatter)
	}

	wt, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render track: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
