package graph

import (
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/vsariola/lumo"
)

type (
	// Connection feeds the output port FromPort of node From into the input
	// port ToPort of node To.
	Connection struct {
		ID       string `bson:"id" yaml:"id"`
		From     string `bson:"from" yaml:"from"`
		FromPort string `bson:"fromPort" yaml:"fromport"`
		To       string `bson:"to" yaml:"to"`
		ToPort   string `bson:"toPort" yaml:"toport"`
	}

	// Graph is a typed dataflow graph. All connections are type checked when
	// they are made, so evaluation never encounters incompatible values. The
	// evaluation order is cached and only recomputed after structural edits.
	//
	// A Graph is not safe for concurrent use.
	Graph struct {
		nodes       []*Node
		byID        map[string]*Node
		connections []Connection
		order       []*Node
		orderValid  bool
	}
)

func New() *Graph {
	return &Graph{byID: map[string]*Node{}}
}

// AddNode creates a node of the given kind. A random id is generated if id
// is empty.
func (g *Graph) AddNode(id string, kind Kind, options Options) (*Node, error) {
	newImpl, ok := registry[kind]
	if !ok {
		return nil, lumo.Errorf(lumo.ValidationError, fmt.Sprintf("unknown node kind %q", kind))
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := g.byID[id]; ok {
		return nil, lumo.Errorf(lumo.ValidationError, fmt.Sprintf("duplicate node id %v", id))
	}
	n := &Node{ID: id, Kind: kind, options: options.Copy(), overrides: Values{}, values: Values{}, impl: newImpl()}
	n.refreshPorts()
	g.nodes = append(g.nodes, n)
	g.byID[id] = n
	g.orderValid = false
	return n, nil
}

// RemoveNode removes the node and all its connections.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.byID[id]
	if !ok {
		return lumo.Errorf(lumo.ResourceNotFoundError, fmt.Sprintf("node %v not found", id))
	}
	g.connections = filterConnections(g.connections, func(c Connection) bool { return c.From != id && c.To != id })
	for i, m := range g.nodes {
		if m == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	delete(g.byID, id)
	g.orderValid = false
	return nil
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

func (g *Graph) Connections() []Connection {
	return append([]Connection(nil), g.connections...)
}

// SetOption changes an option of a node. Options may change the ports of a
// node (e.g. the type and input count of a Switch); connections that no
// longer fit are dropped.
func (g *Graph) SetOption(nodeID, key, value string) error {
	n, ok := g.byID[nodeID]
	if !ok {
		return lumo.Errorf(lumo.ResourceNotFoundError, fmt.Sprintf("node %v not found", nodeID))
	}
	n.options[key] = value
	n.refreshPorts()
	before := len(g.connections)
	g.connections = filterConnections(g.connections, g.fits)
	if len(g.connections) != before {
		g.orderValid = false
	}
	return nil
}

// SetInput overrides the value an unconnected input port reads. The value is
// converted to the port type.
func (g *Graph) SetInput(nodeID, port string, v Value) error {
	n, ok := g.byID[nodeID]
	if !ok {
		return lumo.Errorf(lumo.ResourceNotFoundError, fmt.Sprintf("node %v not found", nodeID))
	}
	p, ok := n.input(port)
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("node %v has no input %q", nodeID, port))
	}
	c, ok := Convert(v, p.Type)
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("cannot convert %v to %v", v.Type, p.Type))
	}
	n.overrides[port] = c
	return nil
}

// Connect connects an output port to an input port. The connection must be
// type compatible and must not create a cycle. An input port accepts only
// one connection; an existing connection to it is replaced.
func (g *Graph) Connect(from, fromPort, to, toPort string) (Connection, error) {
	c := Connection{ID: uuid.NewString(), From: from, FromPort: fromPort, To: to, ToPort: toPort}
	if err := g.check(c); err != nil {
		return Connection{}, err
	}
	g.connections = filterConnections(g.connections, func(o Connection) bool { return o.To != to || o.ToPort != toPort })
	g.connections = append(g.connections, c)
	g.orderValid = false
	return c, nil
}

func (g *Graph) check(c Connection) error {
	src, ok := g.byID[c.From]
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("node %v not found", c.From))
	}
	dst, ok := g.byID[c.To]
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("node %v not found", c.To))
	}
	out, ok := src.output(c.FromPort)
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("node %v has no output %q", c.From, c.FromPort))
	}
	in, ok := dst.input(c.ToPort)
	if !ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("node %v has no input %q", c.To, c.ToPort))
	}
	if !CanConvert(out.Type, in.Type) {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("cannot connect %v output %q to %v input %q", out.Type, c.FromPort, in.Type, c.ToPort))
	}
	if c.From == c.To || g.reaches(c.To, c.From, c) {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("connecting %v to %v would create a cycle", c.From, c.To))
	}
	return nil
}

// reaches reports whether node to is reachable from node from, ignoring the
// connection that c would replace.
func (g *Graph) reaches(from, to string, c Connection) bool {
	visited := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, o := range g.connections {
			if o.To == c.To && o.ToPort == c.ToPort {
				continue
			}
			if o.From == id {
				stack = append(stack, o.To)
			}
		}
	}
	return false
}

func (g *Graph) fits(c Connection) bool {
	src, ok1 := g.byID[c.From]
	dst, ok2 := g.byID[c.To]
	if !ok1 || !ok2 {
		return false
	}
	out, ok1 := src.output(c.FromPort)
	in, ok2 := dst.input(c.ToPort)
	return ok1 && ok2 && CanConvert(out.Type, in.Type)
}

// Disconnect removes the connection feeding the given input port. It
// reports whether there was one.
func (g *Graph) Disconnect(to, toPort string) bool {
	before := len(g.connections)
	g.connections = filterConnections(g.connections, func(o Connection) bool { return o.To != to || o.ToPort != toPort })
	if len(g.connections) == before {
		return false
	}
	g.orderValid = false
	return true
}

func filterConnections(cs []Connection, keep func(Connection) bool) []Connection {
	ret := cs[:0]
	for _, c := range cs {
		if keep(c) {
			ret = append(ret, c)
		}
	}
	return ret
}

// Order returns the node ids in evaluation order.
func (g *Graph) Order() ([]string, error) {
	order, err := g.sorted()
	if err != nil {
		return nil, err
	}
	ret := make([]string, len(order))
	for i, n := range order {
		ret[i] = n.ID
	}
	return ret, nil
}

// sorted returns the cached topological order, recomputing it with Kahn's
// algorithm if the structure has changed. Ties are broken by node insertion
// order so the order is deterministic.
func (g *Graph) sorted() ([]*Node, error) {
	if g.orderValid {
		return g.order, nil
	}
	indegree := make(map[string]int, len(g.nodes))
	for _, c := range g.connections {
		indegree[c.To]++
	}
	order := make([]*Node, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for len(order) < len(g.nodes) {
		progress := false
		for _, n := range g.nodes {
			if done[n.ID] || indegree[n.ID] > 0 {
				continue
			}
			done[n.ID] = true
			order = append(order, n)
			progress = true
			for _, c := range g.connections {
				if c.From == n.ID {
					indegree[c.To]--
				}
			}
		}
		if !progress {
			return nil, lumo.Errorf(lumo.ValidationError, "graph contains a cycle")
		}
	}
	g.order, g.orderValid = order, true
	return order, nil
}

// Evaluate evaluates every node once in topological order and returns the
// results of the output nodes. An error or panic in any node aborts the
// evaluation of the whole graph for this call; the returned error is tagged
// GraphEvaluationError and no results are returned.
func (g *Graph) Evaluate(ctx *lumo.CalculationContext) (results []Result, err error) {
	order, err := g.sorted()
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.GraphEvaluationError, "cannot order graph")
	}
	var current *Node
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = lumo.Errorf(lumo.GraphEvaluationError, fmt.Sprintf("node %v (%v) panicked: %v\n%s", current.ID, current.Kind, r, debug.Stack()))
		}
	}()
	incoming := make(map[[2]string]Connection, len(g.connections))
	for _, c := range g.connections {
		incoming[[2]string{c.To, c.ToPort}] = c
	}
	for _, n := range order {
		current = n
		in := make(Values, len(n.inputs))
		for _, p := range n.inputs {
			c, ok := incoming[[2]string{n.ID, p.Name}]
			if !ok {
				in[p.Name] = n.inputValue(p)
				continue
			}
			v, ok := g.byID[c.From].values[c.FromPort]
			if !ok {
				v = p.Default
			}
			if v, ok = Convert(v, p.Type); !ok {
				v = p.Default
			}
			in[p.Name] = v
		}
		out := make(Values, len(n.outputs))
		res, err := n.impl.evaluate(ctx, n.options, in, out)
		if err != nil {
			return nil, lumo.Wrapf(err, lumo.GraphEvaluationError, fmt.Sprintf("node %v (%v)", n.ID, n.Kind))
		}
		n.values = out
		if res != nil {
			res.NodeID = n.ID
			results = append(results, *res)
		}
	}
	return results, nil
}
