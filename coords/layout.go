package coords

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Point is a position in PDF points, origin bottom-left.
type Point struct{ X, Y float64 }

// Rect is a box whose bottom-left corner is (X, Y).
type Rect struct{ X, Y, W, H float64 }

type EntryKind int

const (
	KindPoint EntryKind = iota
	KindRow
	KindRect
)

func (k EntryKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindRow:
		return "row"
	case KindRect:
		return "rect"
	}
	return "unknown"
}

// Entry is one row of the coordinate table. Rows only carry Y.
type Entry struct {
	ID   string
	Kind EntryKind
	Rect Rect
}

// Columns holds the shared X positions of the evaluation table.
type Columns struct {
	PassX float64 `yaml:"pass_x"`
	FailX float64 `yaml:"fail_x"`
	ObsX  float64 `yaml:"observation_x"`
	// ObsWidth bounds observation text; zero disables truncation.
	ObsWidth float64 `yaml:"observation_width"`
}

type Radii struct {
	RX float64 `yaml:"rx"`
	RY float64 `yaml:"ry"`
}

// Markers describes the ellipse drawn around a pass or fail column.
type Markers struct {
	Pass        Radii      `yaml:"pass"`
	Fail        Radii      `yaml:"fail"`
	BorderWidth float64    `yaml:"border_width"`
	Color       [3]float64 `yaml:"color"`
	Opacity     float64    `yaml:"opacity"`
}

// Text holds the sizes and colour used for drawn values.
type Text struct {
	Font            string     `yaml:"font"`
	Size            float64    `yaml:"size"`
	ObservationSize float64    `yaml:"observation_size"`
	Color           [3]float64 `yaml:"color"`
}

// Registry is an immutable coordinate table for one template revision.
type Registry struct {
	entries map[string]Entry
	columns Columns
	markers Markers
	text    Text
}

func (r *Registry) Lookup(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Point returns the anchor of a plain field. Rows and rects are not points.
func (r *Registry) Point(id string) (Point, bool) {
	e, ok := r.entries[id]
	if !ok || e.Kind != KindPoint {
		return Point{}, false
	}
	return Point{X: e.Rect.X, Y: e.Rect.Y}, true
}

// Row returns the baseline Y of an evaluation item.
func (r *Registry) Row(id string) (float64, bool) {
	e, ok := r.entries[id]
	if !ok || e.Kind != KindRow {
		return 0, false
	}
	return e.Rect.Y, true
}

func (r *Registry) Rect(id string) (Rect, bool) {
	e, ok := r.entries[id]
	if !ok || e.Kind != KindRect {
		return Rect{}, false
	}
	return e.Rect, true
}

func (r *Registry) Columns() Columns { return r.columns }
func (r *Registry) Markers() Markers { return r.markers }
func (r *Registry) Text() Text       { return r.text }

// Entries lists every entry sorted by kind, then descending Y (top of the
// page first), then id.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Rect.Y != b.Rect.Y {
			return a.Rect.Y > b.Rect.Y
		}
		return a.ID < b.ID
	})
	return out
}

type layoutFile struct {
	Points map[string]struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
	} `yaml:"points"`
	Rows  map[string]float64 `yaml:"rows"`
	Rects map[string]struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
		W float64 `yaml:"width"`
		H float64 `yaml:"height"`
	} `yaml:"rects"`
	Columns Columns `yaml:"columns"`
	Markers Markers `yaml:"markers"`
	Text    Text    `yaml:"text"`
}

// Parse builds a registry from YAML. Missing columns, marker and text
// settings fall back to the defaults.
func Parse(data []byte) (*Registry, error) {
	var doc layoutFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("coords: decode layout: %w", err)
	}
	r := &Registry{entries: make(map[string]Entry), columns: doc.Columns, markers: doc.Markers, text: doc.Text}
	add := func(e Entry) error {
		if e.ID == "" {
			return fmt.Errorf("coords: empty identifier in %s table", e.Kind)
		}
		if prev, dup := r.entries[e.ID]; dup {
			return fmt.Errorf("coords: %q defined as both %s and %s", e.ID, prev.Kind, e.Kind)
		}
		r.entries[e.ID] = e
		return nil
	}
	for id, p := range doc.Points {
		if err := add(Entry{ID: id, Kind: KindPoint, Rect: Rect{X: p.X, Y: p.Y}}); err != nil {
			return nil, err
		}
	}
	for id, y := range doc.Rows {
		if err := add(Entry{ID: id, Kind: KindRow, Rect: Rect{Y: y}}); err != nil {
			return nil, err
		}
	}
	for id, rc := range doc.Rects {
		if rc.W <= 0 || rc.H <= 0 {
			return nil, fmt.Errorf("coords: rect %q must have positive size", id)
		}
		if err := add(Entry{ID: id, Kind: KindRect, Rect: Rect{X: rc.X, Y: rc.Y, W: rc.W, H: rc.H}}); err != nil {
			return nil, err
		}
	}
	r.applyDefaults()
	return r, nil
}

func (r *Registry) applyDefaults() {
	c := &r.columns
	if c.PassX == 0 {
		c.PassX = 270
	}
	if c.FailX == 0 {
		c.FailX = 320
	}
	if c.ObsX == 0 {
		c.ObsX = 350
	}
	m := &r.markers
	if m.Pass == (Radii{}) {
		m.Pass = Radii{RX: 20, RY: 13}
	}
	if m.Fail == (Radii{}) {
		m.Fail = Radii{RX: 25, RY: 13}
	}
	if m.BorderWidth == 0 {
		m.BorderWidth = 2
	}
	if m.Color == ([3]float64{}) {
		m.Color = [3]float64{1, 0, 0}
	}
	if m.Opacity == 0 {
		m.Opacity = 0.8
	}
	t := &r.text
	if t.Font == "" {
		t.Font = "Helvetica"
	}
	if t.Size == 0 {
		t.Size = 10
	}
	if t.ObservationSize == 0 {
		t.ObservationSize = 9
	}
}

//go:embed default_layout.yaml
var defaultLayout []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry calibrated for the bundled checklist template.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(defaultLayout)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
