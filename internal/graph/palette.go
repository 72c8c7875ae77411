package graph

import "hash/fnv"

// DefaultScheme is a categorical palette for node types.
var DefaultScheme = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Palette assigns colors to node labels. A label always maps to the same
// color; assignments are memoized for the lifetime of the palette, which is
// one render session. Labels start at a hashed slot and move to the next
// unused color while the scheme has one left.
type Palette struct {
	scheme []string
	colors map[string]string
	used   map[int]bool
}

// NewPalette creates a palette over the given scheme, or DefaultScheme when
// scheme is empty.
func NewPalette(scheme ...string) *Palette {
	if len(scheme) == 0 {
		scheme = DefaultScheme
	}
	return &Palette{
		scheme: scheme,
		colors: make(map[string]string),
		used:   make(map[int]bool),
	}
}

// ColorOf returns the color for a label.
func (p *Palette) ColorOf(label string) string {
	if c, ok := p.colors[label]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(label))
	slot := int(h.Sum32() % uint32(len(p.scheme)))
	if len(p.used) < len(p.scheme) {
		for p.used[slot] {
			slot = (slot + 1) % len(p.scheme)
		}
	}
	p.used[slot] = true
	c := p.scheme[slot]
	p.colors[label] = c
	return c
}

// Len returns the number of labels colored so far.
func (p *Palette) Len() int {
	return len(p.colors)
}
