package render

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
	"github.com/matsen/vulngraph/internal/viewport"
)

// fixedMeasurer gives every rune the same width.
type fixedMeasurer float64

func (m fixedMeasurer) MeasureText(text string) float64 {
	return float64(m) * float64(utf8.RuneCountInString(text))
}

type call struct {
	name  string
	args  []float64
	text  string
	style Style
}

// recorder is a Canvas that records calls.
type recorder struct {
	fixedMeasurer
	calls []call
}

func (r *recorder) rec(name string, text string, s Style, args ...float64) {
	r.calls = append(r.calls, call{name: name, args: args, text: text, style: s})
}

func (r *recorder) Clear(color string)                   { r.rec("clear", "", Style{Fill: color}) }
func (r *recorder) SetFontSize(px float64)               { r.rec("font", "", Style{}, px) }
func (r *recorder) Save()                                { r.rec("save", "", Style{}) }
func (r *recorder) Restore()                             { r.rec("restore", "", Style{}) }
func (r *recorder) Translate(x, y float64)               { r.rec("translate", "", Style{}, x, y) }
func (r *recorder) Rotate(angle float64)                 { r.rec("rotate", "", Style{}, angle) }
func (r *recorder) Circle(x, y, rad float64, s Style)    { r.rec("circle", "", s, x, y, rad) }
func (r *recorder) Line(x1, y1, x2, y2 float64, s Style) { r.rec("line", "", s, x1, y1, x2, y2) }
func (r *recorder) Rect(x, y, w, h float64, s Style)     { r.rec("rect", "", s, x, y, w, h) }
func (r *recorder) Text(x, y float64, text string, s Style) {
	r.rec("text", text, s, x, y)
}
func (r *recorder) Polygon(pts []layout.Point, s Style) {
	var args []float64
	for _, p := range pts {
		args = append(args, p.X, p.Y)
	}
	r.rec("poly", "", s, args...)
}

func (r *recorder) named(name string) []call {
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) firstIndex(name string) int {
	for i, c := range r.calls {
		if c.name == name {
			return i
		}
	}
	return -1
}

func (r *recorder) lastIndex(name string) int {
	idx := -1
	for i, c := range r.calls {
		if c.name == name {
			idx = i
		}
	}
	return idx
}

func scenarioFrame() Frame {
	return Frame{
		Size: viewport.Size{Width: 800, Height: 600},
		Nodes: []graph.GraphNode{
			{ID: "n1", Label: "Vulnerability", Properties: map[string]any{"cveID": "CVE-2021-1"}},
			{ID: "n2", Label: "Exploit", Properties: map[string]any{"eid": "E1"}},
		},
		Positions:  []layout.Point{{X: 100, Y: 100}, {X: 300, Y: 100}},
		Radii:      []float64{16, 16},
		Edges:      []layout.Edge{{Source: 0, Target: 1, Type: "EXPLOITS"}},
		NodeRadius: 16,
		Palette:    graph.NewPalette(),
	}
}

func TestFitText(t *testing.T) {
	m := fixedMeasurer(6)
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     string
	}{
		{name: "fits unchanged", text: "E1", maxWidth: 25.6, want: "E1"},
		{name: "truncated", text: "CVE-2021-44228", maxWidth: 25.6, want: "CVE…"},
		{name: "only ellipsis fits", text: "abcdef", maxWidth: 7, want: "…"},
		{name: "nothing fits", text: "abcdef", maxWidth: 5, want: ""},
		{name: "empty input", text: "", maxWidth: 0, want: ""},
		{name: "trailing space trimmed", text: "ab cdefgh", maxWidth: 24, want: "ab…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitText(m, tt.text, tt.maxWidth)
			if got != tt.want {
				t.Errorf("FitText(%q, %v) = %q, want %q", tt.text, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestFitText_Properties(t *testing.T) {
	m := fixedMeasurer(7)
	texts := []string{"", "a", "CVE-2021-44228", "Microsoft Corporation", "漏洞情报图谱", strings.Repeat("x", 200)}
	for _, r := range []float64{10, 16, 24, 40} {
		maxWidth := r * TextFitFactor
		for _, text := range texts {
			got := FitText(m, text, maxWidth)
			if w := m.MeasureText(got); w > maxWidth {
				t.Errorf("FitText(%q) = %q with width %v > %v", text, got, w, maxWidth)
			}
			if again := FitText(m, got, maxWidth); again != got {
				t.Errorf("FitText not idempotent: %q -> %q", got, again)
			}
		}
	}
}

func TestLabelAngle_NeverUpsideDown(t *testing.T) {
	for deg := -180; deg <= 180; deg += 15 {
		rad := float64(deg) * math.Pi / 180
		a := LabelAngle(math.Cos(rad), math.Sin(rad))
		if a < -math.Pi/2-1e-9 || a > math.Pi/2+1e-9 {
			t.Errorf("LabelAngle(%d°) = %v, outside [-π/2, π/2]", deg, a)
		}
	}
	if got := LabelAngle(-1, 0); math.Abs(got) > 1e-9 {
		t.Errorf("LabelAngle(right-to-left) = %v, want 0", got)
	}
}

func TestDraw_Scenario(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	f := scenarioFrame()
	New().Draw(c, f)

	if c.calls[0].name != "clear" {
		t.Errorf("first call = %s, want clear", c.calls[0].name)
	}
	if last, first := c.lastIndex("line"), c.firstIndex("circle"); last > first {
		t.Errorf("link line drawn after a node (line %d, circle %d)", last, first)
	}

	circles := c.named("circle")
	if len(circles) != 2 {
		t.Fatalf("got %d circles, want 2", len(circles))
	}
	if circles[0].style.Fill == circles[1].style.Fill {
		t.Errorf("Vulnerability and Exploit share fill %s", circles[0].style.Fill)
	}
	if circles[0].style.Fill != f.Palette.ColorOf("Vulnerability") {
		t.Errorf("n1 fill = %s, want palette color", circles[0].style.Fill)
	}

	var texts []string
	for _, tc := range c.named("text") {
		texts = append(texts, tc.text)
	}
	// Radius 16 fits 25.6px: "E1" fits, the CVE id is truncated.
	want := []string{"EXPLOITS", "CVE…", "E1"}
	if strings.Join(texts, ",") != strings.Join(want, ",") {
		t.Errorf("texts = %v, want %v", texts, want)
	}
}

func TestDraw_ArrowTipOffset(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	f := scenarioFrame()
	New().Draw(c, f)

	polys := c.named("poly")
	if len(polys) != 1 {
		t.Fatalf("got %d arrowheads, want 1", len(polys))
	}
	tipX, tipY := polys[0].args[0], polys[0].args[1]
	target := f.Positions[1]
	d := math.Hypot(target.X-tipX, target.Y-tipY)
	if want := f.Radii[1] + DefaultTheme().ArrowGap; math.Abs(d-want) > 1e-9 {
		t.Errorf("tip distance from target = %v, want %v", d, want)
	}
}

func TestDraw_LabelBackgroundFitsText(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	New().Draw(c, scenarioFrame())

	rects := c.named("rect")
	if len(rects) != 1 {
		t.Fatalf("got %d label rects, want 1", len(rects))
	}
	if w := rects[0].args[2]; w < 6*float64(len("EXPLOITS")) {
		t.Errorf("label background width %v narrower than text", w)
	}
	if rects[0].style.Fill == "" {
		t.Error("label background is not opaque")
	}
}

func TestDraw_SchemaNode(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	f := Frame{
		Nodes:      []graph.GraphNode{{ID: "schema_Vulnerability", Label: "Vulnerability"}},
		Positions:  []layout.Point{{X: 50, Y: 50}},
		Radii:      []float64{24},
		NodeRadius: 16,
		Palette:    graph.NewPalette(),
	}
	theme := DefaultTheme()
	New().Draw(c, f)

	circle := c.named("circle")[0]
	if circle.args[2] != 24 {
		t.Errorf("schema radius = %v, want 24", circle.args[2])
	}
	if circle.style.Fill != theme.SchemaFill || circle.style.Stroke != theme.SchemaStroke {
		t.Errorf("schema style = %+v", circle.style)
	}
	if circle.style.LineWidth <= theme.NodeStrokeWidth {
		t.Errorf("schema border %v not thicker than regular %v", circle.style.LineWidth, theme.NodeStrokeWidth)
	}
	text := c.named("text")[0].text
	if !strings.HasPrefix(text, "Vuln") || 6*float64(utf8.RuneCountInString(text)) > 24*TextFitFactor {
		t.Errorf("schema text = %q", text)
	}
}

func TestDraw_SkipsSelfLoopsAndMarksSelection(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	f := scenarioFrame()
	f.Edges = append(f.Edges, layout.Edge{Source: 0, Target: 0, Type: "SELF"})
	f.Selected = "n2"
	New().Draw(c, f)

	if n := len(c.named("line")); n != 1 {
		t.Errorf("got %d lines, want 1", n)
	}
	circles := c.named("circle")
	if circles[1].style.Stroke != DefaultTheme().SelectedStroke {
		t.Errorf("selected node stroke = %s", circles[1].style.Stroke)
	}
	if circles[0].style.Stroke == DefaultTheme().SelectedStroke {
		t.Error("unselected node drawn as selected")
	}
}

func TestDraw_DoesNotMutateFrame(t *testing.T) {
	f := scenarioFrame()
	before := append([]layout.Point(nil), f.Positions...)
	New().Draw(&recorder{fixedMeasurer: 6}, f)
	for i := range before {
		if f.Positions[i] != before[i] {
			t.Errorf("position %d changed from %v to %v", i, before[i], f.Positions[i])
		}
	}
}

func TestDraw_Empty(t *testing.T) {
	c := &recorder{fixedMeasurer: 6}
	New().Draw(c, Frame{})
	if len(c.named("circle")) != 0 || len(c.named("line")) != 0 {
		t.Errorf("empty frame drew shapes: %v", c.calls)
	}
}

func TestFrame_NodeAt(t *testing.T) {
	f := scenarioFrame()
	f.Positions = []layout.Point{{X: 100, Y: 100}, {X: 110, Y: 100}}

	tests := []struct {
		x, y   float64
		want   int
		wantOK bool
	}{
		{x: 90, y: 100, want: 0, wantOK: true},
		{x: 105, y: 100, want: 1, wantOK: true}, // overlap: topmost wins
		{x: 500, y: 500, want: -1, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := f.NodeAt(tt.x, tt.y)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NodeAt(%v, %v) = %d, %v; want %d, %v", tt.x, tt.y, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFonts_Measure(t *testing.T) {
	fonts, err := NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() error = %v", err)
	}
	short := fonts.Measure("ab", 12)
	long := fonts.Measure("abcd", 12)
	if short <= 0 || long <= short {
		t.Errorf("Measure widths = %v, %v; want 0 < short < long", short, long)
	}
	if big := fonts.Measure("ab", 24); big <= short {
		t.Errorf("24px width %v not larger than 12px width %v", big, short)
	}
}

func TestCanvases_DrawScenario(t *testing.T) {
	fonts, err := NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() error = %v", err)
	}
	r := New()

	t.Run("png", func(t *testing.T) {
		c := NewPNGCanvas(400, 200, fonts)
		r.Draw(c, scenarioFrame())
		var buf bytes.Buffer
		if err := c.EncodePNG(&buf); err != nil {
			t.Fatalf("EncodePNG() error = %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
			t.Error("output is not a PNG")
		}
	})

	t.Run("svg", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewSVGCanvas(&buf, 400, 200, fonts)
		r.Draw(c, scenarioFrame())
		c.End()
		out := buf.String()
		for _, want := range []string{"<svg", "<circle", "<polygon", "EXPLOITS", "matrix(", "</svg>"} {
			if !strings.Contains(out, want) {
				t.Errorf("SVG output missing %q", want)
			}
		}
	})

	t.Run("display list", func(t *testing.T) {
		d := NewDisplayList(400, 200, fonts)
		r.Draw(d, scenarioFrame())
		data, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var decoded struct {
			Width float64 `json:"width"`
			Ops   []Op    `json:"ops"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if decoded.Width != 400 || len(decoded.Ops) == 0 || decoded.Ops[0].Op != OpClear {
			t.Errorf("decoded display list = %+v", decoded)
		}
		for _, op := range decoded.Ops {
			if op.Op == OpText && (len(op.Args) != 3 || op.Args[2] <= 0) {
				t.Errorf("text op %q missing measured width: %v", op.Text, op.Args)
			}
		}

		d.Reset(800, 600)
		if len(d.Ops) != 0 || d.Width != 800 {
			t.Errorf("Reset left %d ops, width %v", len(d.Ops), d.Width)
		}
	})
}
