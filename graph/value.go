package graph

import (
	"fmt"

	"github.com/vsariola/lumo"
)

type (
	// PortType is the type tag of a port. Connections are only allowed
	// between identical types or types with a registered conversion.
	PortType string

	// Value is the value flowing through a port. Only the field matching Type
	// is meaningful.
	Value struct {
		Type   PortType         `bson:"type" yaml:"type"`
		Number float64          `bson:"number,omitempty" yaml:"number,omitempty"`
		Bool   bool             `bson:"bool,omitempty" yaml:"bool,omitempty"`
		Color  lumo.Color       `bson:"color,omitempty" yaml:"color,omitempty,flow"`
		Colors lumo.ColorBuffer `bson:"colors,omitempty" yaml:"colors,omitempty,flow"`
	}

	// Conversion maps a value of one port type to another.
	Conversion func(Value) Value

	conversionKey struct {
		From, To PortType
	}
)

const (
	Number      PortType = "number"
	Boolean     PortType = "boolean"
	ColorSingle PortType = "color_single"
	ColorArray  PortType = "color_array"
)

var conversions = map[conversionKey]Conversion{
	{Number, Boolean}: func(v Value) Value { return BoolValue(v.Number != 0) },
	{Boolean, Number}: func(v Value) Value {
		if v.Bool {
			return NumberValue(1)
		}
		return NumberValue(0)
	},
	{Number, ColorSingle}:     func(v Value) Value { return ColorValue(lumo.Gray(v.Number)) },
	{Number, ColorArray}:      func(v Value) Value { return ColorsValue(lumo.ColorBuffer{lumo.Gray(v.Number)}) },
	{ColorSingle, ColorArray}: func(v Value) Value { return ColorsValue(lumo.ColorBuffer{v.Color}) },
}

func NumberValue(v float64) Value { return Value{Type: Number, Number: v} }

func BoolValue(b bool) Value { return Value{Type: Boolean, Bool: b} }

func ColorValue(c lumo.Color) Value { return Value{Type: ColorSingle, Color: c} }

func ColorsValue(c lumo.ColorBuffer) Value { return Value{Type: ColorArray, Colors: c} }

// Zero returns the zero value of the type. The zero of ColorArray is a single
// black color.
func (t PortType) Zero() Value {
	if t == ColorArray {
		return ColorsValue(lumo.ColorBuffer{lumo.Black})
	}
	return Value{Type: t}
}

func (t PortType) Valid() bool {
	switch t {
	case Number, Boolean, ColorSingle, ColorArray:
		return true
	}
	return false
}

// CanConvert reports whether a value of type from can be fed into a port of
// type to.
func CanConvert(from, to PortType) bool {
	if from == to {
		return true
	}
	_, ok := conversions[conversionKey{from, to}]
	return ok
}

// Convert converts v to type to. ok is false if no conversion is registered.
func Convert(v Value, to PortType) (ret Value, ok bool) {
	if v.Type == to {
		return v, true
	}
	c, ok := conversions[conversionKey{v.Type, to}]
	if !ok {
		return Value{}, false
	}
	return c(v), true
}

func (v Value) String() string {
	switch v.Type {
	case Number:
		return fmt.Sprintf("%g", v.Number)
	case Boolean:
		return fmt.Sprintf("%v", v.Bool)
	case ColorSingle:
		return fmt.Sprintf("rgb%v", v.Color)
	case ColorArray:
		return fmt.Sprintf("%d colors", len(v.Colors))
	}
	return "<invalid>"
}
