package lumo

import "math"

type (
	// Color is an RGB triplet with components nominally in range [0,255].
	// Values outside the range are allowed during computation and clamped
	// only when converted to bytes.
	Color [3]float32

	// ColorBuffer is a strip of colors, e.g. one color per LED.
	ColorBuffer []Color

	BlendMode string
)

const (
	BlendMultiply BlendMode = "multiply"
	BlendDarken   BlendMode = "darken"
	BlendLighten  BlendMode = "lighten"
	BlendScreen   BlendMode = "screen"
	BlendOverlay  BlendMode = "overlay"
	BlendBurn     BlendMode = "burn"
	BlendDodge    BlendMode = "dodge"
)

var Black = Color{}

// Gray returns a gray color with all components v*255.
func Gray(v float64) Color {
	c := float32(v * 255)
	return Color{c, c, c}
}

// ClampByte clamps v to [0,255] and truncates it.
func ClampByte(v float32) byte {
	if v != v || v <= 0 { // NaN or negative
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

func (c Color) Bytes() [3]byte {
	return [3]byte{ClampByte(c[0]), ClampByte(c[1]), ClampByte(c[2])}
}

// Resample returns a buffer of exactly n colors, sampling b at
// floor(i*len(b)/n). An empty buffer resamples to black.
func (b ColorBuffer) Resample(n int) ColorBuffer {
	if n <= 0 {
		return ColorBuffer{}
	}
	ret := make(ColorBuffer, n)
	if len(b) == 0 {
		return ret
	}
	for i := range ret {
		ret[i] = b[i*len(b)/n]
	}
	return ret
}

// At returns the color at index i, or the last color if i is beyond the
// buffer. An empty buffer returns black.
func (b ColorBuffer) At(i int) Color {
	if len(b) == 0 {
		return Black
	}
	if i >= len(b) {
		return b[len(b)-1]
	}
	return b[i]
}

// Mix interpolates linearly from a to b in RGB space; f=0 gives a, f=1 gives
// b.
func Mix(a, b Color, f float64) Color {
	var ret Color
	for i := range ret {
		ret[i] = a[i] + (b[i]-a[i])*float32(f)
	}
	return ret
}

// Blend applies a separable blend mode with a as the top layer and b as the
// bottom layer. Unknown modes return a.
func Blend(a, b Color, mode BlendMode) Color {
	var ret Color
	for i := range ret {
		x, y := float64(a[i])/255, float64(b[i])/255
		var r float64
		switch mode {
		case BlendMultiply:
			r = x * y
		case BlendDarken:
			r = math.Min(x, y)
		case BlendLighten:
			r = math.Max(x, y)
		case BlendScreen:
			r = 1 - (1-x)*(1-y)
		case BlendOverlay:
			if y < 0.5 {
				r = 2 * x * y
			} else {
				r = 1 - 2*(1-x)*(1-y)
			}
		case BlendBurn:
			if x == 0 {
				r = 0
			} else {
				r = math.Max(0, 1-(1-y)/x)
			}
		case BlendDodge:
			if x >= 1 {
				r = 1
			} else {
				r = math.Min(1, y/(1-x))
			}
		default:
			r = x
		}
		ret[i] = float32(r * 255)
	}
	return ret
}

// HSV returns hue in degrees [0,360), saturation and value in [0,1].
func (c Color) HSV() (h, s, v float64) {
	r, g, b := float64(c[0])/255, float64(c[1])/255, float64(c[2])/255
	mx := math.Max(r, math.Max(g, b))
	mn := math.Min(r, math.Min(g, b))
	v = mx
	d := mx - mn
	if mx > 0 {
		s = d / mx
	}
	if d == 0 {
		return 0, s, v
	}
	switch mx {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h * 60, s, v
}

// HSVColor converts hue in degrees, saturation and value in [0,1] to RGB.
func HSVColor(h, s, v float64) Color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return Color{float32((r + m) * 255), float32((g + m) * 255), float32((b + m) * 255)}
}

// WithValue returns c with its HSV value replaced by v.
func (c Color) WithValue(v float64) Color {
	h, s, _ := c.HSV()
	return HSVColor(h, s, v)
}
