// Package radarview draws nearby users on a terminal radar.
package radarview

import (
	"math"
	"strings"

	"github.com/okian/loka/internal/domain/radar"
)

// Terminal geometry.
const (
	// AspectRatio corrects for terminal cells being about twice as tall as wide.
	AspectRatio = 0.5
	// CellPixels is the display width of one terminal column.
	CellPixels = 8.0
	RingCount  = 4
	// maxLabelLen bounds the runes of the username shown next to a marker.
	maxLabelLen = 8
)

// Frame is one radar picture: markers projected for a display of
// DisplayRadius pixels, with an optional label per marker ID.
type Frame struct {
	DisplayRadius float64
	Points        []radar.PlacedPoint
	Labels        map[string]string
}

// Layout returns the centre cell and the radius in columns of a radar drawn
// in a width x height area.
func Layout(width, height int) (centerX, centerY int, radius float64) {
	centerX = width / 2
	centerY = height / 2
	radius = float64(min(centerX-1, int(float64(centerY-1)/AspectRatio)))
	if radius < 3 {
		radius = 3
	}
	return centerX, centerY, radius
}

// MarkerCell maps a placed point onto the grid. The display radius is
// scaled to the radar radius so the outer ring is the display edge.
func MarkerCell(p radar.PlacedPoint, displayRadius float64, centerX, centerY int, radius float64) (col, row int) {
	scale := radius / displayRadius
	col = centerX + int(math.Round(p.X*scale))
	row = centerY + int(math.Round(p.Y*scale*AspectRatio))
	return col, row
}

type marker struct {
	point    radar.PlacedPoint
	label    []rune
	labelCol int
}

// Render produces the radar as a styled string of height lines.
func Render(width, height int, f Frame) string {
	if width < 10 || height < 5 || f.DisplayRadius <= 0 {
		return ""
	}

	centerX, centerY, radius := Layout(width, height)

	rings := make([]float64, RingCount)
	for i := range rings {
		rings[i] = radius * float64(i+1) / float64(RingCount)
	}

	// Later markers never hide earlier ones.
	markers := make(map[int]marker, len(f.Points))
	labels := make(map[int]rune)
	for _, p := range f.Points {
		col, row := MarkerCell(p, f.DisplayRadius, centerX, centerY, radius)
		if col < 0 || col >= width || row < 0 || row >= height {
			continue
		}
		key := row*width + col
		if _, taken := markers[key]; taken {
			continue
		}
		m := marker{point: p, label: truncate(f.Labels[p.ID]), labelCol: col + 2}
		markers[key] = m
		for i := 0; i < len(m.label) && m.labelCol+i < width; i++ {
			lk := row*width + m.labelCol + i
			if _, taken := markers[lk]; taken {
				break
			}
			labels[lk] = m.label[i]
		}
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			key := row*width + col
			if m, ok := markers[key]; ok {
				sb.WriteString(renderMarker(m.point))
				continue
			}
			if ch, ok := labels[key]; ok {
				sb.WriteString(styleLabel.Render(string(ch)))
				continue
			}
			sb.WriteString(renderCell(col, row, centerX, centerY, radius, rings))
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func renderMarker(p radar.PlacedPoint) string {
	if p.Overlaps {
		return styleOverlap.Render("@")
	}
	return styleUser.Render("*")
}

func renderCell(col, row, centerX, centerY int, radius float64, rings []float64) string {
	dx := float64(col - centerX)
	dy := float64(row-centerY) / AspectRatio
	dist := math.Sqrt(dx*dx + dy*dy)

	switch {
	case dist > radius+0.5:
		return " "
	case col == centerX && row == centerY:
		return styleCenter.Render("+")
	case col == centerX:
		return styleRing.Render("|")
	case row == centerY:
		return styleRing.Render("-")
	}
	for _, r := range rings {
		if math.Abs(dist-r) < 0.8 {
			return styleRing.Render(string(ringChar(math.Atan2(dx, -dy))))
		}
	}
	return styleDot.Render(".")
}

// ringChar picks a stroke for a ring cell at angle radians, 0 being up.
func ringChar(angle float64) rune {
	if angle < 0 {
		angle += 2 * math.Pi
	}
	switch int(math.Round(angle/(math.Pi/4))) % 4 {
	case 0:
		return '-'
	case 1:
		return '/'
	case 2:
		return '|'
	default:
		return '\\'
	}
}

func truncate(s string) []rune {
	r := []rune(s)
	if len(r) > maxLabelLen {
		return r[:maxLabelLen]
	}
	return r
}
