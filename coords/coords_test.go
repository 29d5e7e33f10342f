package coords

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistryLookups(t *testing.T) {
	r := Default()

	points := map[string]Point{
		"fecha_hora":           {145, 682},
		"transportista":        {400, 682},
		"responsable_silstech": {200, 662},
		"dominio_interno_tc":   {180, 642},
		"dominio_sr":           {380, 642},
		"nombre_representante": {250, 140},
	}
	for id, want := range points {
		got, ok := r.Point(id)
		if !ok || got != want {
			t.Errorf("Point(%q) = %v, %v; want %v", id, got, ok, want)
		}
	}

	rows := map[string]float64{
		"tractor_encendido": 515, "tractor_fallas_tablero": 490, "tractor_parabrisas_luces": 465,
		"tractor_tacografo": 445, "tractor_zona_trasera": 420,
		"tlk_alimentacion": 320, "tlk_empalmes": 290, "tlk_cables": 270,
		"tlk_antena": 240, "tlk_funcionamiento": 215,
	}
	for id, want := range rows {
		if got, ok := r.Row(id); !ok || got != want {
			t.Errorf("Row(%q) = %v, %v; want %v", id, got, ok, want)
		}
	}

	if got, ok := r.Rect("firma_responsable_silstech"); !ok || got != (Rect{420, 640, 120, 45}) {
		t.Errorf("signature rect = %v, %v", got, ok)
	}
	if got, ok := r.Rect("firma_representante_transportista"); !ok || got != (Rect{100, 70, 150, 50}) {
		t.Errorf("signature rect = %v, %v", got, ok)
	}
	if diff := cmp.Diff(Columns{PassX: 270, FailX: 320, ObsX: 350}, r.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	want := Markers{Pass: Radii{20, 13}, Fail: Radii{25, 13}, BorderWidth: 2, Color: [3]float64{1, 0, 0}, Opacity: 0.8}
	if diff := cmp.Diff(want, r.Markers()); diff != "" {
		t.Errorf("markers mismatch (-want +got):\n%s", diff)
	}
	if txt := r.Text(); txt.Size != 10 || txt.ObservationSize != 9 || txt.Font != "Helvetica" {
		t.Errorf("text = %+v", txt)
	}
}

func TestLookupKindsAreDistinct(t *testing.T) {
	r := Default()
	if _, ok := r.Point("tractor_encendido"); ok {
		t.Error("row anchor must not be returned as a point")
	}
	if _, ok := r.Point("firma_responsable_silstech"); ok {
		t.Error("rect must not be returned as a point")
	}
	if _, ok := r.Lookup("equipamiento"); ok {
		t.Error("unknown identifier should be absent")
	}
	e, ok := r.Lookup("tlk_antena")
	if !ok || e.Kind != KindRow {
		t.Errorf("Lookup(tlk_antena) = %+v", e)
	}
}

func TestEntriesOrder(t *testing.T) {
	entries := Default().Entries()
	if len(entries) != 18 {
		t.Fatalf("entries = %d, want 18", len(entries))
	}
	if entries[0].ID != "fecha_hora" || entries[1].ID != "transportista" {
		t.Errorf("points should come first, top to bottom: %v %v", entries[0].ID, entries[1].ID)
	}
	if last := entries[len(entries)-1]; last.ID != "firma_representante_transportista" {
		t.Errorf("last entry = %v", last.ID)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	r, err := Parse([]byte("points:\n  a: {x: 1, y: 2}\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := r.Markers()
	if m.Pass != (Radii{20, 13}) || m.Fail != (Radii{25, 13}) || m.Opacity != 0.8 || m.BorderWidth != 2 {
		t.Errorf("marker defaults not applied: %+v", m)
	}
	if r.Text().Size != 10 {
		t.Errorf("text defaults not applied: %+v", r.Text())
	}
	if got := r.Columns(); got != (Columns{PassX: 270, FailX: 320, ObsX: 350}) {
		t.Errorf("columns = %+v, want defaults without truncation", got)
	}

	r, err = Parse([]byte("columns:\n  observation_width: 200\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Columns(); got != (Columns{PassX: 270, FailX: 320, ObsX: 350, ObsWidth: 200}) {
		t.Errorf("partial columns = %+v", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate", "points:\n  a: {x: 1, y: 2}\nrows:\n  a: 3\n", "defined as both"},
		{"empty rect", "rects:\n  s: {x: 1, y: 2}\n", "positive size"},
		{"bad yaml", "points: [", "decode layout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestMatrix(t *testing.T) {
	m := Rect{X: 100, Y: 70, W: 150, H: 50}.Placement()
	if m != (Matrix{150, 0, 0, 50, 100, 70}) {
		t.Errorf("placement = %v", m)
	}
	p := m.Transform(Point{1, 1})
	if p != (Point{250, 120}) {
		t.Errorf("transform = %v", p)
	}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	back := inv.Transform(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y-1) > 1e-9 {
		t.Errorf("inverse round trip = %v", back)
	}
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Error("singular matrix should not invert")
	}
	r := Rotate(math.Pi / 2).Transform(Point{1, 0})
	if math.Abs(r.X) > 1e-9 || math.Abs(r.Y-1) > 1e-9 {
		t.Errorf("rotate = %v", r)
	}
	if Identity().Multiply(Translate(3, 4)) != Translate(3, 4) {
		t.Error("identity is not neutral")
	}
}
