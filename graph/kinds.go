package graph

import (
	"fmt"
	"math"
	"strconv"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumo"
)

const (
	KindAutomation  Kind = "automation"
	KindNotes       Kind = "notes"
	KindLFO         Kind = "lfo"
	KindPeak        Kind = "peak"
	KindSpectrum    Kind = "spectrum"
	KindRGB         Kind = "rgb"
	KindHSV         Kind = "hsv"
	KindMixColor    Kind = "mix-color"
	KindBlendColor  Kind = "blend-color"
	KindAfterglow   Kind = "afterglow"
	KindDot         Kind = "dot"
	KindMath        Kind = "math"
	KindBoolean     Kind = "boolean"
	KindSwitch      Kind = "switch"
	KindPreview     Kind = "preview"
	KindStripOutput Kind = "strip-output"
)

// Option keys.
const (
	OptTrack     = "track"
	OptRate      = "rate"
	OptShape     = "shape"
	OptOperation = "operation"
	OptMode      = "mode"
	OptGlow      = "glow"
	OptType      = "type"
	OptInputs    = "inputs"
	OptOutput    = "output"
)

var registry = map[Kind]func() impl{
	KindAutomation:  func() impl { return automationNode{} },
	KindNotes:       func() impl { return notesNode{} },
	KindLFO:         func() impl { return lfoNode{} },
	KindPeak:        func() impl { return peakNode{} },
	KindSpectrum:    func() impl { return spectrumNode{} },
	KindRGB:         func() impl { return &rgbNode{} },
	KindHSV:         func() impl { return &hsvNode{} },
	KindMixColor:    func() impl { return mixColorNode{} },
	KindBlendColor:  func() impl { return blendColorNode{} },
	KindAfterglow:   func() impl { return &afterglowNode{} },
	KindDot:         func() impl { return dotNode{} },
	KindMath:        func() impl { return mathNode{} },
	KindBoolean:     func() impl { return booleanNode{} },
	KindSwitch:      func() impl { return switchNode{} },
	KindPreview:     func() impl { return &previewNode{} },
	KindStripOutput: func() impl { return &stripOutputNode{} },
}

type (
	automationNode  struct{}
	notesNode       struct{}
	lfoNode         struct{}
	peakNode        struct{}
	spectrumNode    struct{}
	rgbNode         struct{ last lumo.Color }
	hsvNode         struct{ last lumo.Color }
	mixColorNode    struct{}
	blendColorNode  struct{}
	afterglowNode   struct{ buffer lumo.ColorBuffer }
	dotNode         struct{}
	mathNode        struct{}
	booleanNode     struct{}
	switchNode      struct{}
	previewNode     struct{ last lumo.ColorBuffer }
	stripOutputNode struct{ last lumo.ColorBuffer }
)

func (automationNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Min", 0), numberPort("Max", 1)}, []Port{{Name: "Value", Type: Number}}
}

func (automationNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	v := 0.0
	if tv, ok := ctx.TrackValues[o[OptTrack]]; ok && !tv.IsNotes {
		v = tv.Number
	}
	mn, mx := in.Number("Min"), in.Number("Max")
	out["Value"] = NumberValue(mn + v*(mx-mn))
	return nil, nil
}

func (notesNode) ports(Options) ([]Port, []Port) {
	return nil, []Port{{Name: "Count", Type: Number}, {Name: "Key", Type: Number}, {Name: "Velocity", Type: Number}, {Name: "Gate", Type: Boolean}}
}

func (notesNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	var notes []lumo.Note
	if tv, ok := ctx.TrackValues[o[OptTrack]]; ok && tv.IsNotes {
		notes = tv.Notes
	}
	key, velocity := 0, 0.0
	for _, n := range notes {
		if n.Velocity >= velocity {
			key, velocity = n.Value, n.Velocity
		}
	}
	out["Count"] = NumberValue(float64(len(notes)))
	out["Key"] = NumberValue(float64(key))
	out["Velocity"] = NumberValue(velocity)
	out["Gate"] = BoolValue(len(notes) > 0)
	return nil, nil
}

// lfoRates are given in beats.
var lfoRates = map[string]float64{
	"1/8": 1.0 / 8, "1/6": 1.0 / 6, "1/4": 1.0 / 4, "1/3": 1.0 / 3, "1/2": 1.0 / 2,
	"1": 1, "2": 2, "4": 4, "8": 8,
}

var lfoShapes = map[string]func(x float64) float64{
	"sine": func(x float64) float64 { return math.Sin(2 * math.Pi * x) },
	"triangle": func(x float64) float64 {
		k := math.Floor(2*x + 0.5)
		return 4 * (x - 0.5*k) * math.Pow(-1, k)
	},
	"sawtooth": func(x float64) float64 { return 2*x - 1 },
	"square": func(x float64) float64 {
		if x < 0.5 {
			return -1
		}
		return 1
	},
}

func (lfoNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Min", 0), numberPort("Max", 1), boolPort("Invert", false)}, []Port{{Name: "Value", Type: Number}}
}

func (lfoNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	beats, ok := lfoRates[o.Get(OptRate, "1/2")]
	if !ok {
		return nil, fmt.Errorf("unknown lfo rate %q", o[OptRate])
	}
	f, ok := lfoShapes[o.Get(OptShape, "sine")]
	if !ok {
		return nil, fmt.Errorf("unknown lfo shape %q", o[OptShape])
	}
	tpb := ctx.Tempo.TicksPerBeat
	if tpb <= 0 {
		tpb = lumo.DefaultTicksPerBeat
	}
	period := beats * float64(tpb)
	x := math.Mod(ctx.Position, period) / period
	if x < 0 {
		x += 1
	}
	raw := f(x)
	if in.Bool("Invert") {
		raw = -raw
	}
	mn, mx := in.Number("Min"), in.Number("Max")
	out["Value"] = NumberValue(mn + (raw+1)*0.5*(mx-mn))
	return nil, nil
}

func (peakNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Min Decibels", -60), numberPort("Max Decibels", 0)}, []Port{{Name: "Peak", Type: Number}}
}

// evaluate computes the RMS level of the last 30 ms of the time domain
// snapshot, scaled so that a full scale sine is 0 dB.
func (peakNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	data := ctx.TimeDomain
	n := len(data)
	if ctx.SampleRate > 0 {
		n = min(n, ctx.SampleRate*30/1000)
	}
	if n == 0 {
		out["Peak"] = NumberValue(0)
		return nil, nil
	}
	window := data[len(data)-n:]
	rms := math.Sqrt(2 * float64(vek32.Dot(window, window)) / float64(n))
	db := 20 * math.Log10(rms)
	out["Peak"] = NumberValue(scaleDecibels(db, in.Number("Min Decibels"), in.Number("Max Decibels")))
	return nil, nil
}

func (spectrumNode) ports(Options) ([]Port, []Port) {
	return []Port{
		numberPort("Low Frequency", 20),
		numberPort("High Frequency", 250),
		numberPort("Min Decibels", -100),
		numberPort("Max Decibels", -30),
	}, []Port{{Name: "Value", Type: Number}}
}

// evaluate averages the decibel levels of the frequency bins within the
// band. Bin i of an m-bin spectrum is centered at i*SampleRate/(2m).
func (spectrumNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	freq := ctx.Frequency
	if len(freq) == 0 || ctx.SampleRate <= 0 {
		out["Value"] = NumberValue(0)
		return nil, nil
	}
	width := float64(ctx.SampleRate) / float64(2*len(freq))
	lo := min(max(int(in.Number("Low Frequency")/width), 0), len(freq)-1)
	hi := min(max(int(in.Number("High Frequency")/width), lo), len(freq)-1)
	db := float64(vek32.Mean(freq[lo : hi+1]))
	out["Value"] = NumberValue(scaleDecibels(db, in.Number("Min Decibels"), in.Number("Max Decibels")))
	return nil, nil
}

func scaleDecibels(db, minDb, maxDb float64) float64 {
	if maxDb == minDb {
		return 0
	}
	return clamp01((db - minDb) / (maxDb - minDb))
}

func (*rgbNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("R", 0), numberPort("G", 0), numberPort("B", 0)}, []Port{{Name: "Color", Type: ColorSingle}}
}

func (r *rgbNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	r.last = lumo.Color{float32(in.Number("R") * 255), float32(in.Number("G") * 255), float32(in.Number("B") * 255)}
	out["Color"] = ColorValue(r.last)
	return nil, nil
}

func (r *rgbNode) preview() lumo.ColorBuffer { return lumo.ColorBuffer{r.last} }

func (*hsvNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Hue", 0), numberPort("Saturation", 0), numberPort("Value", 0)}, []Port{{Name: "Color", Type: ColorSingle}}
}

func (h *hsvNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	h.last = lumo.HSVColor(in.Number("Hue"), clamp01(in.Number("Saturation")), clamp01(in.Number("Value")))
	out["Color"] = ColorValue(h.last)
	return nil, nil
}

func (h *hsvNode) preview() lumo.ColorBuffer { return lumo.ColorBuffer{h.last} }

func (mixColorNode) ports(Options) ([]Port, []Port) {
	return []Port{colorsPort("Color 1"), colorsPort("Color 2"), numberPort("Factor", 0.5)}, []Port{{Name: "Output", Type: ColorArray}}
}

func (mixColorNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	a, b, f := in.Colors("Color 1"), in.Colors("Color 2"), in.Number("Factor")
	ret := make(lumo.ColorBuffer, max(len(a), len(b)))
	for i := range ret {
		ret[i] = lumo.Mix(a.At(i), b.At(i), f)
	}
	out["Output"] = ColorsValue(ret)
	return nil, nil
}

var blendModes = map[string]lumo.BlendMode{
	"multiply": lumo.BlendMultiply, "darken": lumo.BlendDarken, "lighten": lumo.BlendLighten,
	"screen": lumo.BlendScreen, "overlay": lumo.BlendOverlay, "burn": lumo.BlendBurn, "dodge": lumo.BlendDodge,
}

func (blendColorNode) ports(Options) ([]Port, []Port) {
	return []Port{colorsPort("Color 1"), colorsPort("Color 2")}, []Port{{Name: "Output", Type: ColorArray}}
}

func (blendColorNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	mode, ok := blendModes[o.Get(OptMode, "multiply")]
	if !ok {
		return nil, fmt.Errorf("unknown blend mode %q", o[OptMode])
	}
	a, b := in.Colors("Color 1"), in.Colors("Color 2")
	ret := make(lumo.ColorBuffer, max(len(a), len(b)))
	for i := range ret {
		ret[i] = lumo.Blend(a.At(i), b.At(i), mode)
	}
	out["Output"] = ColorsValue(ret)
	return nil, nil
}

func (*afterglowNode) ports(Options) ([]Port, []Port) {
	return []Port{colorsPort("Input"), numberPort("Strength", 0.05)}, []Port{{Name: "Output", Type: ColorArray}}
}

// evaluate mixes the input into a persistent buffer and outputs the lighter
// of the buffer and the input, so bright colors decay slowly.
func (a *afterglowNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	res := resolution(ctx)
	if len(a.buffer) != res {
		a.buffer = make(lumo.ColorBuffer, res)
	}
	input, strength := in.Colors("Input"), in.Number("Strength")
	ret := make(lumo.ColorBuffer, res)
	for i := range ret {
		c := lumo.Black
		if i < len(input) {
			c = input[i]
		}
		a.buffer[i] = lumo.Mix(a.buffer[i], c, strength)
		ret[i] = lumo.Blend(a.buffer[i], c, lumo.BlendLighten)
	}
	out["Output"] = ColorsValue(ret)
	return nil, nil
}

var dotGlows = map[string]func(center, position, p float64) float64{
	"linear": func(center, position, width float64) float64 {
		if width == 0 {
			return 0
		}
		return 1 - math.Abs(position-center)/width
	},
	"exponential": func(center, position, base float64) float64 {
		return math.Pow(base, math.Abs(position-center))
	},
	"gaussian": func(center, position, sd float64) float64 {
		d := position - center
		return math.Exp(-(d*d)/(2*sd*sd)) / (sd * math.Sqrt(2*math.Pi))
	},
}

func (dotNode) ports(Options) ([]Port, []Port) {
	return []Port{
		numberPort("Center Position", 0),
		numberPort("Alpha", 1),
		colorPort("Color", lumo.Color{173, 216, 230}),
		numberPort("Glow", 0),
		boolPort("Symmetric", false),
	}, []Port{{Name: "Colors", Type: ColorArray}}
}

func (dotNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	glow, ok := dotGlows[o.Get(OptGlow, "linear")]
	if !ok {
		return nil, fmt.Errorf("unknown glow type %q", o[OptGlow])
	}
	res := resolution(ctx)
	center := clamp01(in.Number("Center Position"))
	alpha := clamp01(in.Number("Alpha"))
	width := math.Max(0, in.Number("Glow"))
	color := in.Color("Color")
	_, _, v := color.HSV()
	ret := make(lumo.ColorBuffer, res)
	for i := range ret {
		l := clamp01(alpha * glow(center, float64(i)/float64(res), width) * v)
		ret[i] = color.WithValue(l)
	}
	if in.Bool("Symmetric") {
		mirrored := make(lumo.ColorBuffer, res)
		for i := range ret {
			mirrored[i] = lumo.Blend(ret[i], ret[res-i-1], lumo.BlendLighten)
		}
		ret = mirrored
	}
	out["Colors"] = ColorsValue(ret)
	return nil, nil
}

var mathOps = map[string]func(a, b float64) float64{
	"add":       func(a, b float64) float64 { return a + b },
	"subtract":  func(a, b float64) float64 { return a - b },
	"multiply":  func(a, b float64) float64 { return a * b },
	"divide":    func(a, b float64) float64 { return safe(a / b) },
	"sine":      func(a, _ float64) float64 { return math.Sin(a) },
	"cosine":    func(a, _ float64) float64 { return math.Cos(a) },
	"tangent":   func(a, _ float64) float64 { return math.Tan(a) },
	"arcsine":   func(a, _ float64) float64 { return safe(math.Asin(a)) },
	"arccosine": func(a, _ float64) float64 { return safe(math.Acos(a)) },
	"arctangent": func(a, _ float64) float64 {
		return math.Atan(a)
	},
	"power":     func(a, b float64) float64 { return safe(math.Pow(a, b)) },
	"logarithm": func(a, b float64) float64 { return safe(math.Log(a) / math.Log(b)) },
	"minimum":   math.Min,
	"maximum":   math.Max,
	"round":     func(a, _ float64) float64 { return math.Round(a) },
	"modulo":    func(a, b float64) float64 { return safe(math.Mod(a, b)) },
	"absolute":  func(a, _ float64) float64 { return math.Abs(a) },
}

func (mathNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Value 1", 0), numberPort("Value 2", 0), boolPort("Clamp", false)}, []Port{{Name: "Output", Type: Number}}
}

func (mathNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	op, ok := mathOps[o.Get(OptOperation, "add")]
	if !ok {
		return nil, fmt.Errorf("unknown math operation %q", o[OptOperation])
	}
	v := op(in.Number("Value 1"), in.Number("Value 2"))
	if in.Bool("Clamp") {
		v = clamp01(v)
	}
	out["Output"] = NumberValue(v)
	return nil, nil
}

var booleanOps = map[string]func(a, b float64) bool{
	"==": func(a, b float64) bool { return a == b },
	">":  func(a, b float64) bool { return a > b },
	"<":  func(a, b float64) bool { return a < b },
	">=": func(a, b float64) bool { return a >= b },
	"<=": func(a, b float64) bool { return a <= b },
}

func (booleanNode) ports(Options) ([]Port, []Port) {
	return []Port{numberPort("Value 1", 0), numberPort("Value 2", 0), boolPort("Round", false), boolPort("Invert", false)},
		[]Port{{Name: "Output", Type: Boolean}}
}

func (booleanNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	op, ok := booleanOps[o.Get(OptOperation, "==")]
	if !ok {
		return nil, fmt.Errorf("unknown boolean operation %q", o[OptOperation])
	}
	a, b := in.Number("Value 1"), in.Number("Value 2")
	if in.Bool("Round") {
		a, b = math.Round(a), math.Round(b)
	}
	out["Output"] = BoolValue(op(a, b) != in.Bool("Invert"))
	return nil, nil
}

// switchInputs returns the number of selectable inputs, at least 2.
func switchInputs(o Options) int {
	n, err := strconv.Atoi(o.Get(OptInputs, "2"))
	if err != nil || n < 2 {
		return 2
	}
	return n
}

func (switchNode) ports(o Options) ([]Port, []Port) {
	t := PortType(o.Get(OptType, string(Number)))
	if !t.Valid() {
		t = Number
	}
	inputs := []Port{numberPort("Switch", 0)}
	for i := 1; i <= switchInputs(o); i++ {
		inputs = append(inputs, Port{Name: fmt.Sprintf("Value %d", i), Type: t, Default: t.Zero()})
	}
	return inputs, []Port{{Name: "Output", Type: t}}
}

// evaluate outputs input number floor(Switch)+1, clamped to the available
// inputs.
func (switchNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	n := switchInputs(o)
	i := int(math.Floor(safe(in.Number("Switch"))))
	i = min(max(i, 0), n-1)
	out["Output"] = in[fmt.Sprintf("Value %d", i+1)]
	return nil, nil
}

func (*previewNode) ports(Options) ([]Port, []Port) {
	return []Port{colorsPort("Colors")}, nil
}

func (p *previewNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	p.last = in.Colors("Colors")
	return nil, nil
}

func (p *previewNode) preview() lumo.ColorBuffer { return p.last }

func (*stripOutputNode) ports(Options) ([]Port, []Port) {
	return []Port{colorsPort("Colors")}, nil
}

func (s *stripOutputNode) evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error) {
	s.last = in.Colors("Colors")
	id := o[OptOutput]
	if id == "" {
		return nil, nil
	}
	return &Result{FixtureID: id, Colors: s.last}, nil
}

func (s *stripOutputNode) preview() lumo.ColorBuffer { return s.last }

func resolution(ctx *lumo.CalculationContext) int {
	if ctx.Resolution > 0 {
		return ctx.Resolution
	}
	return lumo.DefaultResolution
}

// clamp01 clamps v to [0,1]; NaN becomes 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// safe maps NaN and infinities to 0.
func safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
