package lumo_test

import (
	"math"
	"testing"

	"github.com/vsariola/lumo"
)

func TestAutomationCurveValueAt(t *testing.T) {
	cases := []struct {
		name   string
		points []lumo.AutomationPoint
		tick   float64
		want   float64
	}{
		{"flat", []lumo.AutomationPoint{{0, 0.5, lumo.Linear}, {960, 0.5, lumo.Linear}}, 480, 0.5},
		{"linear midpoint", []lumo.AutomationPoint{{0, 0, lumo.Linear}, {100, 1, lumo.Linear}}, 50, 0.5},
		{"hold past end", []lumo.AutomationPoint{{0, 0, lumo.Linear}, {100, 1, lumo.Linear}}, 150, 1},
		{"before first point", []lumo.AutomationPoint{{0, 0, lumo.Linear}, {100, 1, lumo.Linear}}, -10, 0},
		{"step holds", []lumo.AutomationPoint{{0, 0, lumo.Step}, {100, 1, lumo.Step}}, 50, 0},
		{"step at point", []lumo.AutomationPoint{{0, 0, lumo.Step}, {100, 1, lumo.Step}}, 100, 1},
		{"next point kind decides", []lumo.AutomationPoint{{0, 0, lumo.Step}, {100, 1, lumo.Linear}}, 25, 0.25},
		{"empty", nil, 10, 0},
		{"unsorted input", []lumo.AutomationPoint{{100, 1, lumo.Linear}, {0, 0, lumo.Linear}}, 75, 0.75},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			curve := lumo.NewAutomationCurve(c.points...)
			if got := curve.ValueAt(c.tick); math.Abs(got-c.want) > 1e-9 {
				t.Errorf("ValueAt(%v) = %v, want %v", c.tick, got, c.want)
			}
		})
	}
}

func TestAutomationCurveEqualUnits(t *testing.T) {
	// the backward scan finds the later of the two points sharing unit 100
	curve := lumo.NewAutomationCurve(
		lumo.AutomationPoint{Unit: 0, Value: 0, Kind: lumo.Linear},
		lumo.AutomationPoint{Unit: 100, Value: 0.2, Kind: lumo.Linear},
		lumo.AutomationPoint{Unit: 100, Value: 0.8, Kind: lumo.Linear},
	)
	if got := curve.ValueAt(100); got != 0.8 {
		t.Errorf("ValueAt(100) = %v, want 0.8", got)
	}
	if got := curve.ValueAt(50); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("ValueAt(50) = %v, want 0.1", got)
	}
}

func TestAutomationCurveStaysSorted(t *testing.T) {
	curve := lumo.NewAutomationCurve()
	for _, u := range []int{300, 100, 200, 100} {
		curve.AddPoint(lumo.AutomationPoint{Unit: u, Value: float64(u) / 1000, Kind: lumo.Linear})
	}
	if err := curve.SetPoint(0, lumo.AutomationPoint{Unit: 400, Value: 1}); err != nil {
		t.Fatalf("SetPoint failed: %v", err)
	}
	points := curve.Points()
	for i := 1; i < len(points); i++ {
		if points[i-1].Unit > points[i].Unit {
			t.Fatalf("points not sorted: %v", points)
		}
	}
	if points[len(points)-1].Unit != 400 {
		t.Errorf("last point unit = %v, want 400", points[len(points)-1].Unit)
	}
	if err := curve.RemovePoint(10); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("RemovePoint out of range: expected validation error, got %v", err)
	}
}

func TestNotePatternNotesAt(t *testing.T) {
	p := lumo.NewNotePattern(
		lumo.Note{Start: 100, End: 200, Value: 60, Velocity: 1},
		lumo.Note{Start: 0, End: 150, Value: 64, Velocity: 0.5},
	)
	if got := p.NotesAt(120); len(got) != 2 {
		t.Errorf("NotesAt(120) returned %v notes, want 2", len(got))
	}
	if got := p.NotesAt(150); len(got) != 1 || got[0].Value != 60 {
		t.Errorf("NotesAt(150) = %v, want only key 60", got)
	}
	if got := p.NotesAt(200); len(got) != 0 {
		t.Errorf("NotesAt(200) = %v, want none (end is exclusive)", got)
	}
	if err := p.AddNote(lumo.Note{Start: 5, End: 5}); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("AddNote with empty span: expected validation error, got %v", err)
	}
	if p.Length() != 200 {
		t.Errorf("Length() = %v, want 200", p.Length())
	}
}
