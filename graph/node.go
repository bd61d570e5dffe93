package graph

import (
	"sort"
	"strings"

	"github.com/vsariola/lumo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// Kind identifies a node implementation. The set of kinds is closed; see
	// Kinds.
	Kind string

	// Options are the non-port settings of a node, e.g. the selected track
	// of an Automation node or the operation of a Math node.
	Options map[string]string

	// Port is a typed input or output of a node. For inputs, Default is used
	// when nothing is connected and no override has been set.
	Port struct {
		Name    string
		Type    PortType
		Default Value
	}

	// Values maps port names to values.
	Values map[string]Value

	// Result is the side-channel output of an output node: a color strip
	// routed to a fixture.
	Result struct {
		NodeID    string
		FixtureID string
		Colors    lumo.ColorBuffer
	}

	// Node is an instance of a node kind inside a graph.
	Node struct {
		ID        string
		Kind      Kind
		options   Options
		inputs    []Port
		outputs   []Port
		overrides Values
		values    Values
		impl      impl
	}

	// impl is implemented by every node kind. ports returns the ports for the
	// given options; evaluate reads the inputs, writes out and optionally
	// returns a Result. Stateful kinds keep their state in the impl value,
	// which is created once per node.
	impl interface {
		ports(o Options) (inputs, outputs []Port)
		evaluate(ctx *lumo.CalculationContext, o Options, in, out Values) (*Result, error)
	}

	// previewer is implemented by kinds that keep the last colors they
	// produced or consumed for display.
	previewer interface {
		preview() lumo.ColorBuffer
	}
)

// Title returns a human readable name of the kind, e.g. "Strip Output".
func (k Kind) Title() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(k), "-", " "))
}

// Kinds returns all node kinds in alphabetical order.
func Kinds() []Kind {
	ret := make([]Kind, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

func (o Options) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

func (o Options) Copy() Options {
	ret := make(Options, len(o))
	for k, v := range o {
		ret[k] = v
	}
	return ret
}

func (v Values) Number(name string) float64 { return v[name].Number }

func (v Values) Bool(name string) bool { return v[name].Bool }

func (v Values) Color(name string) lumo.Color { return v[name].Color }

func (v Values) Colors(name string) lumo.ColorBuffer { return v[name].Colors }

func (n *Node) Options() Options { return n.options.Copy() }

func (n *Node) Inputs() []Port { return append([]Port(nil), n.inputs...) }

func (n *Node) Outputs() []Port { return append([]Port(nil), n.outputs...) }

// Output returns the value the output port had after the last evaluation.
func (n *Node) Output(port string) (Value, bool) {
	v, ok := n.values[port]
	return v, ok
}

// Preview returns the last colors shown by the node, for kinds that keep a
// preview.
func (n *Node) Preview() (lumo.ColorBuffer, bool) {
	if p, ok := n.impl.(previewer); ok {
		return p.preview(), true
	}
	return nil, false
}

func (n *Node) input(name string) (Port, bool) {
	for _, p := range n.inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

func (n *Node) output(name string) (Port, bool) {
	for _, p := range n.outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// inputValue returns the value an unconnected input port reads.
func (n *Node) inputValue(p Port) Value {
	if v, ok := n.overrides[p.Name]; ok {
		return v
	}
	return p.Default
}

func (n *Node) refreshPorts() {
	n.inputs, n.outputs = n.impl.ports(n.options)
	for name, v := range n.overrides {
		p, ok := n.input(name)
		if !ok {
			delete(n.overrides, name)
			continue
		}
		if c, ok := Convert(v, p.Type); ok {
			n.overrides[name] = c
		} else {
			delete(n.overrides, name)
		}
	}
}

func numberPort(name string, def float64) Port {
	return Port{Name: name, Type: Number, Default: NumberValue(def)}
}

func boolPort(name string, def bool) Port {
	return Port{Name: name, Type: Boolean, Default: BoolValue(def)}
}

func colorPort(name string, def lumo.Color) Port {
	return Port{Name: name, Type: ColorSingle, Default: ColorValue(def)}
}

func colorsPort(name string) Port {
	return Port{Name: name, Type: ColorArray, Default: ColorArray.Zero()}
}
