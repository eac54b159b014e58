package mapper

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	plan "indoormap/internal/mapdata/models"
)

// A4 landscape in points.
const (
	pageWidth  = 842.0
	pageHeight = 595.0
	pageMargin = 36.0
)

// ============================================================
// PDF output
// ============================================================

// RenderPDF prints the plan on one A4 landscape page, scaled to fit, with
// room names at the room centers.
func (r *Renderer) RenderPDF(doc *plan.ExportDocument, w io.Writer) error {
	shapes, bound, err := r.layout(doc)
	if err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetTitle("Floor plan", false)
	pdf.SetCreator("indoormap converter", false)
	pdf.SetFont("Helvetica", "", 8)
	pdf.AddPage()

	bw, bh := bound.Right()-bound.Left(), bound.Top()-bound.Bottom()
	scale := 1.0
	if bw > 0 && bh > 0 {
		scale = math.Min((pageWidth-2*pageMargin)/bw, (pageHeight-2*pageMargin)/bh)
	}
	toPage := func(x, y float64) gofpdf.PointType {
		return gofpdf.PointType{
			X: pageMargin + (x-bound.Left())*scale,
			Y: pageMargin + (y-bound.Bottom())*scale,
		}
	}

	pdf.SetLineWidth(0.5)
	for _, s := range shapes {
		pts := make([]gofpdf.PointType, 0, len(s.ring))
		var cx, cy float64
		vertices := ringPoints(s)
		for _, p := range vertices {
			pts = append(pts, toPage(p[0], p[1]))
			cx, cy = cx+p[0], cy+p[1]
		}
		if len(pts) < 3 {
			continue
		}
		style := "D"
		if rgb, ok := hexColor(s.fill); ok {
			pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
			style = "FD"
		}
		if rgb, ok := hexColor(s.stroke); ok {
			pdf.SetDrawColor(rgb[0], rgb[1], rgb[2])
		}
		pdf.Polygon(pts, style)

		if s.label != "" {
			at := toPage(cx/float64(len(vertices)), cy/float64(len(vertices)))
			pdf.SetTextColor(60, 60, 60)
			pdf.Text(at.X-pdf.GetStringWidth(s.label)/2, at.Y, s.label)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func ringPoints(s shape) [][2]float64 {
	out := make([][2]float64, 0, len(s.ring))
	for i, p := range s.ring {
		if i == len(s.ring)-1 && len(s.ring) > 1 && p == s.ring[0] {
			break
		}
		out = append(out, [2]float64{p[0], p[1]})
	}
	return out
}

// hexColor parses "#rgb" and "#rrggbb". Anything else, "none" included,
// means no paint.
func hexColor(s string) ([3]int, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return [3]int{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return [3]int{}, false
	}
	return [3]int{int((v >> 16) & 0xff), int((v >> 8) & 0xff), int(v & 0xff)}, true
}
