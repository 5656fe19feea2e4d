package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/example/studytracker/internal/level"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"rate": rate,
	}).ParseFS(templateFS, "templates/report.html.tmpl"),
)

const (
	chartWidth  = 640
	chartHeight = 220
	chartPad    = 24
)

type view struct {
	*Report
	Chart     template.HTML
	ChartJSON template.JS
}

// RenderHTML writes r as a self-contained HTML document.
func RenderHTML(w io.Writer, r *Report) error {
	series, err := chartSeries(r.Levels)
	if err != nil {
		return err
	}
	v := view{Report: r, Chart: levelChart(r), ChartJSON: series}
	if err := reportTemplate.Execute(w, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// chartSeries encodes the level steps as [unix millis, level] pairs.
func chartSeries(points []LevelPoint) (template.JS, error) {
	data := make([][2]int64, 0, len(points))
	for _, p := range points {
		data = append(data, [2]int64{p.At.UnixMilli(), int64(p.Level)})
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode level series: %w", err)
	}
	return template.JS(b), nil
}

// levelChart draws the level steps over the report range as an inline SVG.
func levelChart(r *Report) template.HTML {
	span := r.To.AddDays(1).Sub(r.From.Time).Seconds()
	if len(r.Levels) == 0 || span <= 0 {
		return ""
	}
	top := 1
	for _, p := range r.Levels {
		top = max(top, p.Level, p.OldLevel)
	}
	x := func(p LevelPoint) float64 {
		f := p.At.Sub(r.From.Time).Seconds() / span
		return chartPad + min(max(f, 0), 1)*(chartWidth-2*chartPad)
	}
	y := func(lv int) float64 {
		return chartHeight - chartPad - float64(lv-1)/float64(max(top-1, 1))*(chartHeight-2*chartPad)
	}

	var pts []string
	prev := r.Levels[0].OldLevel
	pts = append(pts, fmt.Sprintf("%d,%.1f", chartPad, y(max(prev, level.MinLevel))))
	for _, p := range r.Levels {
		px := x(p)
		pts = append(pts, fmt.Sprintf("%.1f,%.1f", px, y(max(prev, level.MinLevel))))
		pts = append(pts, fmt.Sprintf("%.1f,%.1f", px, y(p.Level)))
		prev = p.Level
	}
	pts = append(pts, fmt.Sprintf("%d,%.1f", chartWidth-chartPad, y(prev)))

	var b strings.Builder
	fmt.Fprintf(&b, `<svg viewBox="0 0 %d %d" width="100%%" role="img" aria-label="Level history">`, chartWidth, chartHeight)
	fmt.Fprintf(&b, `<polyline fill="none" stroke="#3b82f6" stroke-width="2" points="%s"/>`, strings.Join(pts, " "))
	for l := 1; l <= top; l++ {
		fmt.Fprintf(&b, `<text x="4" y="%.1f" font-size="10">%d</text>`, y(l)+3, l)
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

func rate(done, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", done*100/total)
}
