// Package pdf writes small single-page PDF 1.4 documents using the two
// standard Helvetica fonts, which every viewer ships, so no font embedding
// is needed.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

// A4 portrait in points.
const (
	PageWidth  = 595
	PageHeight = 842
)

type Font string

const (
	Regular Font = "F1"
	Bold    Font = "F2"
)

type Color struct{ R, G, B float64 }

var (
	Black = Color{0, 0, 0}
	White = Color{1, 1, 1}
)

func (c Color) Scale(f float64) Color {
	return Color{c.R * f, c.G * f, c.B * f}
}

// Canvas accumulates content-stream operators for one page. Coordinates are
// in points from the bottom-left corner.
type Canvas struct {
	stream bytes.Buffer
}

func NewCanvas() *Canvas { return &Canvas{} }

func (c *Canvas) FillRect(col Color, x, y, w, h float64) {
	fmt.Fprintf(&c.stream, "%.2f %.2f %.2f rg %s %s %s %s re f\n", col.R, col.G, col.B, num(x), num(y), num(w), num(h))
}

func (c *Canvas) StrokeRect(col Color, width, x, y, w, h float64) {
	fmt.Fprintf(&c.stream, "%.2f %.2f %.2f RG %s w %s %s %s %s re S\n", col.R, col.G, col.B, num(width), num(x), num(y), num(w), num(h))
}

func (c *Canvas) Line(col Color, width, x1, y1, x2, y2 float64) {
	fmt.Fprintf(&c.stream, "%.2f %.2f %.2f RG %s w %s %s m %s %s l S\n", col.R, col.G, col.B, num(width), num(x1), num(y1), num(x2), num(y2))
}

func (c *Canvas) Text(font Font, size float64, col Color, x, y float64, text string) {
	fmt.Fprintf(&c.stream, "%.2f %.2f %.2f rg BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		col.R, col.G, col.B, font, num(size), num(x), num(y), Escape(text))
}

// TextRight draws text so that it ends at x.
func (c *Canvas) TextRight(font Font, size float64, col Color, x, y float64, text string) {
	c.Text(font, size, col, x-TextWidth(font, size, text), y, text)
}

func (c *Canvas) TextCenter(font Font, size float64, col Color, cx, y float64, text string) {
	c.Text(font, size, col, cx-TextWidth(font, size, text)/2, y, text)
}

func (c *Canvas) Content() string { return c.stream.String() }

// Render wraps the canvas in a complete document: catalog, page tree, one
// page, its content stream, the two fonts, xref table and trailer.
func (c *Canvas) Render() []byte {
	streamStr := c.stream.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R /Resources << /Font << /F1 5 0 R /F2 6 0 R >> >> >>", PageWidth, PageHeight),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(streamStr), streamStr),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold /Encoding /WinAnsiEncoding >>",
	}

	var body bytes.Buffer
	offsets := make([]int, len(objects)+1)
	body.WriteString("%PDF-1.4\n")
	for i, obj := range objects {
		offsets[i+1] = body.Len()
		fmt.Fprintf(&body, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := body.Len()
	fmt.Fprintf(&body, "xref\n0 %d\n", len(objects)+1)
	body.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&body, "%010d 00000 n \n", offsets[i])
	}
	body.WriteString("trailer\n")
	fmt.Fprintf(&body, "<< /Size %d /Root 1 0 R >>\n", len(objects)+1)
	body.WriteString("startxref\n")
	fmt.Fprintf(&body, "%d\n", xrefStart)
	body.WriteString("%%EOF")
	return body.Bytes()
}

// Escape makes s safe inside a PDF literal string. Characters outside
// printable ASCII are replaced, since the standard fonts cannot show them.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '₹':
			b.WriteString("Rs.")
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Wrap breaks input into lines of at most max characters on word boundaries.
func Wrap(input string, max int) []string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return []string{""}
	}
	lines := make([]string, 0)
	current := words[0]
	for _, next := range words[1:] {
		if len(current)+1+len(next) <= max {
			current += " " + next
			continue
		}
		lines = append(lines, current)
		current = next
	}
	return append(lines, current)
}

// Shorten truncates s to max characters with a trailing ellipsis.
func Shorten(s string, max int) string {
	v := strings.TrimSpace(s)
	if max <= 3 || len(v) <= max {
		return v
	}
	return v[:max-3] + "..."
}

// TextWidth approximates the advance width of text using Helvetica metrics
// for the common character classes.
func TextWidth(font Font, size float64, text string) float64 {
	units := 0
	for _, r := range text {
		units += glyphUnits(font, r)
	}
	return float64(units) * size / 1000
}

func glyphUnits(font Font, r rune) int {
	bold := font == Bold
	switch {
	case r >= '0' && r <= '9':
		return 556
	case r == ' ' || r == ',' || r == '.' || r == ':' || r == ';':
		return 278
	case r == '-' || r == '(' || r == ')':
		return 333
	case r == 'i' || r == 'j' || r == 'l':
		if bold {
			return 278
		}
		return 222
	case r == 'm' || r == 'w':
		if bold {
			return 889
		}
		return 833
	case r == 'W' || r == 'M':
		return 833
	case r >= 'A' && r <= 'Z':
		if bold {
			return 722
		}
		return 667
	case r >= 'a' && r <= 'z':
		if bold {
			return 611
		}
		return 556
	default:
		return 556
	}
}

func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
