package graph

import (
	"fmt"

	"github.com/vsariola/lumo"
	"go.mongodb.org/mongo-driver/bson"
)

type (
	// State is the persisted form of a graph. Evaluation state, e.g. the
	// buffer of an Afterglow node, is not persisted.
	State struct {
		Nodes       []NodeState  `bson:"nodes" yaml:"nodes"`
		Connections []Connection `bson:"connections" yaml:"connections"`
	}

	NodeState struct {
		ID      string  `bson:"id" yaml:"id"`
		Kind    Kind    `bson:"kind" yaml:"kind"`
		Options Options `bson:"options,omitempty" yaml:"options,omitempty"`
		Inputs  Values  `bson:"inputs,omitempty" yaml:"inputs,omitempty"`
	}
)

func (g *Graph) State() State {
	s := State{Connections: g.Connections()}
	for _, n := range g.nodes {
		inputs := make(Values, len(n.overrides))
		for k, v := range n.overrides {
			inputs[k] = v
		}
		s.Nodes = append(s.Nodes, NodeState{ID: n.ID, Kind: n.Kind, Options: n.Options(), Inputs: inputs})
	}
	return s
}

// FromState rebuilds a graph. Every node and connection goes through the
// same validation as interactive edits, so a malformed or cyclic state is
// rejected as a whole.
func FromState(s State) (*Graph, error) {
	g := New()
	for _, ns := range s.Nodes {
		if _, err := g.AddNode(ns.ID, ns.Kind, ns.Options); err != nil {
			return nil, err
		}
		for port, v := range ns.Inputs {
			if err := g.SetInput(ns.ID, port, v); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range s.Connections {
		if err := g.check(c); err != nil {
			return nil, err
		}
		g.connections = append(g.connections, c)
	}
	if _, err := g.sorted(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) MarshalBSON() ([]byte, error) {
	return bson.Marshal(g.State())
}

// Unmarshal decodes a graph encoded with MarshalBSON.
func Unmarshal(data []byte) (*Graph, error) {
	var s State
	if err := bson.Unmarshal(data, &s); err != nil {
		return nil, lumo.Wrapf(err, lumo.ValidationError, "cannot decode graph")
	}
	g, err := FromState(s)
	if err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}
