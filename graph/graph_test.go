package graph_test

import (
	"math"
	"strings"
	"testing"

	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/graph"
)

func mustAdd(t *testing.T, g *graph.Graph, id string, kind graph.Kind, o graph.Options) *graph.Node {
	t.Helper()
	n, err := g.AddNode(id, kind, o)
	if err != nil {
		t.Fatalf("AddNode(%v) failed: %v", kind, err)
	}
	return n
}

func mustConnect(t *testing.T, g *graph.Graph, from, fromPort, to, toPort string) {
	t.Helper()
	if _, err := g.Connect(from, fromPort, to, toPort); err != nil {
		t.Fatalf("Connect(%v.%v -> %v.%v) failed: %v", from, fromPort, to, toPort, err)
	}
}

func TestNumberToBooleanConversion(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "math", graph.KindMath, graph.Options{graph.OptOperation: "add"})
	mustAdd(t, g, "switch", graph.KindSwitch, graph.Options{graph.OptType: string(graph.Boolean)})
	mustAdd(t, g, "boolean", graph.KindBoolean, graph.Options{graph.OptOperation: "=="})
	if err := g.SetInput("math", "Value 1", graph.NumberValue(0.5)); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	// number output -> boolean input
	mustConnect(t, g, "math", "Output", "switch", "Value 1")
	mustConnect(t, g, "switch", "Output", "boolean", "Invert")
	if _, err := g.Evaluate(&lumo.CalculationContext{}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	v, _ := g.Node("switch")
	out, ok := v.Output("Output")
	if !ok || out.Type != graph.Boolean || !out.Bool {
		t.Errorf("switch output = %+v, want boolean true", out)
	}
	b, _ := g.Node("boolean")
	// 0 == 0 inverted by the converted true
	if out, _ := b.Output("Output"); out.Bool {
		t.Errorf("boolean output = %v, want false", out)
	}
}

func TestConnectRejectsIncompatibleTypes(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "rgb", graph.KindRGB, nil)
	mustAdd(t, g, "math", graph.KindMath, nil)
	if _, err := g.Connect("rgb", "Color", "math", "Value 1"); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("color -> number: expected validation error, got %v", err)
	}
	if _, err := g.Connect("rgb", "Nope", "math", "Value 1"); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("unknown port: expected validation error, got %v", err)
	}
}

func TestConnectRejectsCycles(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "a", graph.KindMath, nil)
	mustAdd(t, g, "b", graph.KindMath, nil)
	mustConnect(t, g, "a", "Output", "b", "Value 1")
	if _, err := g.Connect("b", "Output", "a", "Value 1"); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("cycle: expected validation error, got %v", err)
	}
	if _, err := g.Connect("a", "Output", "a", "Value 2"); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("self loop: expected validation error, got %v", err)
	}
}

func TestConnectReplacesInputConnection(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "a", graph.KindMath, nil)
	mustAdd(t, g, "b", graph.KindMath, nil)
	mustAdd(t, g, "c", graph.KindMath, nil)
	mustConnect(t, g, "a", "Output", "c", "Value 1")
	mustConnect(t, g, "b", "Output", "c", "Value 1")
	cs := g.Connections()
	if len(cs) != 1 || cs[0].From != "b" {
		t.Errorf("expected a single connection from b, got %+v", cs)
	}
}

func TestEvaluationOrderIsTopological(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "out", graph.KindMath, nil)
	mustAdd(t, g, "mid", graph.KindMath, nil)
	mustAdd(t, g, "src", graph.KindMath, nil)
	mustConnect(t, g, "src", "Output", "mid", "Value 1")
	mustConnect(t, g, "mid", "Output", "out", "Value 1")
	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	want := []string{"src", "mid", "out"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	g.SetInput("src", "Value 1", graph.NumberValue(2))
	g.SetInput("mid", "Value 2", graph.NumberValue(3))
	if _, err := g.Evaluate(&lumo.CalculationContext{}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	n, _ := g.Node("out")
	if v, _ := n.Output("Output"); v.Number != 5 {
		t.Errorf("out = %v, want 5", v.Number)
	}
}

func TestStripOutputResult(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "rgb", graph.KindRGB, nil)
	mustAdd(t, g, "out", graph.KindStripOutput, graph.Options{graph.OptOutput: "fixture-1"})
	g.SetInput("rgb", "R", graph.NumberValue(1))
	mustConnect(t, g, "rgb", "Color", "out", "Colors")
	results, err := g.Evaluate(&lumo.CalculationContext{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(results) != 1 || results[0].FixtureID != "fixture-1" {
		t.Fatalf("unexpected results %+v", results)
	}
	if c := results[0].Colors; len(c) != 1 || c[0] != (lumo.Color{255, 0, 0}) {
		t.Errorf("colors = %v, want [[255 0 0]]", c)
	}
	n, _ := g.Node("out")
	if p, ok := n.Preview(); !ok || len(p) != 1 {
		t.Errorf("strip output should keep a preview, got %v %v", p, ok)
	}
}

func TestEvaluateFailureIsScoped(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "lfo", graph.KindLFO, graph.Options{graph.OptShape: "wobble"})
	mustAdd(t, g, "out", graph.KindStripOutput, graph.Options{graph.OptOutput: "f"})
	results, err := g.Evaluate(&lumo.CalculationContext{})
	if !lumo.IsKind(err, lumo.GraphEvaluationError) {
		t.Fatalf("expected graph evaluation error, got %v", err)
	}
	if results != nil {
		t.Errorf("failed evaluation should not return results, got %v", results)
	}
	if err := g.SetOption("lfo", graph.OptShape, "sine"); err != nil {
		t.Fatalf("SetOption failed: %v", err)
	}
	if _, err := g.Evaluate(&lumo.CalculationContext{}); err != nil {
		t.Errorf("evaluation should recover after fixing the option, got %v", err)
	}
}

func TestEvaluateRecoversFromPanic(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "lfo", graph.KindLFO, nil)
	// the lfo reads the position from the context, so a nil context panics
	results, err := g.Evaluate(nil)
	if !lumo.IsKind(err, lumo.GraphEvaluationError) {
		t.Fatalf("expected graph evaluation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "lfo") || results != nil {
		t.Errorf("error should name the node and results be empty, got %v %v", err, results)
	}
	if _, err := g.Evaluate(&lumo.CalculationContext{}); err != nil {
		t.Errorf("graph should evaluate after a panic, got %v", err)
	}
}

func TestLFO(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "lfo", graph.KindLFO, graph.Options{graph.OptRate: "1", graph.OptShape: "sawtooth"})
	ctx := &lumo.CalculationContext{Position: 120, Tempo: lumo.DefaultTempo()}
	if _, err := g.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	n, _ := g.Node("lfo")
	if v, _ := n.Output("Value"); math.Abs(v.Number-0.5) > 1e-9 {
		t.Errorf("sawtooth at half a beat = %v, want 0.5", v.Number)
	}
}

func TestAutomationReadsTrackValue(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "a", graph.KindAutomation, graph.Options{graph.OptTrack: "t1"})
	g.SetInput("a", "Min", graph.NumberValue(10))
	g.SetInput("a", "Max", graph.NumberValue(20))
	ctx := &lumo.CalculationContext{TrackValues: map[string]lumo.TrackValue{"t1": lumo.NumberValue(0.25)}}
	if _, err := g.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	n, _ := g.Node("a")
	if v, _ := n.Output("Value"); v.Number != 12.5 {
		t.Errorf("automation value = %v, want 12.5", v.Number)
	}
}

func TestAfterglowDecays(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "glow", graph.KindAfterglow, nil)
	g.SetInput("glow", "Strength", graph.NumberValue(0.5))
	g.SetInput("glow", "Input", graph.ColorsValue(lumo.ColorBuffer{{200, 0, 0}}))
	ctx := &lumo.CalculationContext{Resolution: 4}
	g.Evaluate(ctx)
	g.SetInput("glow", "Input", graph.ColorsValue(lumo.ColorBuffer{lumo.Black}))
	g.Evaluate(ctx)
	n, _ := g.Node("glow")
	v, _ := n.Output("Output")
	if len(v.Colors) != 4 {
		t.Fatalf("afterglow output has %v colors, want 4", len(v.Colors))
	}
	if r := v.Colors[0][0]; r < 49 || r > 51 {
		t.Errorf("after one black frame red = %v, want 50", r)
	}
}

func TestStateRoundTrip(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, "rgb", graph.KindRGB, nil)
	mustAdd(t, g, "out", graph.KindStripOutput, graph.Options{graph.OptOutput: "f"})
	g.SetInput("rgb", "G", graph.NumberValue(0.5))
	mustConnect(t, g, "rgb", "Color", "out", "Colors")
	data, err := g.MarshalBSON()
	if err != nil {
		t.Fatalf("MarshalBSON failed: %v", err)
	}
	g2, err := graph.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	results, err := g2.Evaluate(&lumo.CalculationContext{})
	if err != nil || len(results) != 1 {
		t.Fatalf("Evaluate = %v, %v", results, err)
	}
	if c := results[0].Colors[0]; c[1] != 127.5 {
		t.Errorf("green = %v, want 127.5", c[1])
	}
}

func TestFromStateRejectsCycles(t *testing.T) {
	s := graph.State{
		Nodes: []graph.NodeState{{ID: "a", Kind: graph.KindMath}, {ID: "b", Kind: graph.KindMath}},
		Connections: []graph.Connection{
			{ID: "1", From: "a", FromPort: "Output", To: "b", ToPort: "Value 1"},
			{ID: "2", From: "b", FromPort: "Output", To: "a", ToPort: "Value 1"},
		},
	}
	if _, err := graph.FromState(s); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestKindTitle(t *testing.T) {
	if got := graph.KindStripOutput.Title(); got != "Strip Output" {
		t.Errorf("Title() = %q", got)
	}
	if len(graph.Kinds()) != 16 {
		t.Errorf("expected 16 node kinds, got %v", len(graph.Kinds()))
	}
}
