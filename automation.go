package lumo

import (
	"fmt"
	"sort"
)

type (
	// Interpolation tells how the curve approaches a point from the point
	// before it.
	Interpolation string

	AutomationPoint struct {
		Unit  int           `bson:"unit" yaml:"unit"`
		Value float64       `bson:"value" yaml:"value"`
		Kind  Interpolation `bson:"type" yaml:"type"`
	}

	// AutomationCurve is a list of control points, kept sorted ascending by
	// unit after every mutation. Points with equal units keep their insertion
	// order.
	AutomationCurve struct {
		points []AutomationPoint
	}
)

const (
	Linear Interpolation = "linear"
	Step   Interpolation = "step"
)

func NewAutomationCurve(points ...AutomationPoint) *AutomationCurve {
	c := &AutomationCurve{points: append([]AutomationPoint(nil), points...)}
	c.sort()
	return c
}

func (c *AutomationCurve) sort() {
	sort.SliceStable(c.points, func(i, j int) bool { return c.points[i].Unit < c.points[j].Unit })
}

// Points returns a copy of the control points.
func (c *AutomationCurve) Points() []AutomationPoint {
	return append([]AutomationPoint(nil), c.points...)
}

func (c *AutomationCurve) Len() int {
	return len(c.points)
}

func (c *AutomationCurve) AddPoint(p AutomationPoint) {
	c.points = append(c.points, p)
	c.sort()
}

func (c *AutomationCurve) RemovePoint(index int) error {
	if index < 0 || index >= len(c.points) {
		return Errorf(ValidationError, fmt.Sprintf("point index %v out of range [0,%v)", index, len(c.points)))
	}
	c.points = append(c.points[:index], c.points[index+1:]...)
	return nil
}

// SetPoint replaces the point at index and re-sorts the curve.
func (c *AutomationCurve) SetPoint(index int, p AutomationPoint) error {
	if index < 0 || index >= len(c.points) {
		return Errorf(ValidationError, fmt.Sprintf("point index %v out of range [0,%v)", index, len(c.points)))
	}
	c.points[index] = p
	c.sort()
	return nil
}

// ValueAt samples the curve. Before the first point the value is 0, after
// the last point the value of the last point is held.
func (c *AutomationCurve) ValueAt(tick float64) float64 {
	i := len(c.points) - 1
	for ; i >= 0; i-- {
		if float64(c.points[i].Unit) <= tick {
			break
		}
	}
	if i < 0 {
		return 0
	}
	a := c.points[i]
	if i == len(c.points)-1 {
		return a.Value
	}
	b := c.points[i+1]
	switch b.Kind {
	case Step:
		return a.Value
	default:
		if b.Unit == a.Unit {
			return b.Value
		}
		return a.Value + (b.Value-a.Value)*((tick-float64(a.Unit))/float64(b.Unit-a.Unit))
	}
}

func (c *AutomationCurve) Copy() *AutomationCurve {
	return &AutomationCurve{points: c.Points()}
}
