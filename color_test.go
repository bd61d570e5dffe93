package lumo_test

import (
	"testing"

	"github.com/vsariola/lumo"
)

func TestResample(t *testing.T) {
	b := lumo.ColorBuffer{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	got := b.Resample(6)
	want := []float32{1, 1, 2, 2, 3, 3}
	for i := range want {
		if got[i][0] != want[i] {
			t.Errorf("Resample(6)[%d] = %v, want %v", i, got[i][0], want[i])
		}
	}
	if got := b.Resample(1); got[0][0] != 1 {
		t.Errorf("Resample(1) = %v", got)
	}
	if got := (lumo.ColorBuffer{}).Resample(2); len(got) != 2 || got[0] != lumo.Black || got[1] != lumo.Black {
		t.Errorf("empty buffer should resample to black, got %v", got)
	}
}

func TestClampByte(t *testing.T) {
	cases := map[float32]byte{-5: 0, 0: 0, 1.9: 1, 254.99: 254, 255: 255, 300: 255}
	for in, want := range cases {
		if got := lumo.ClampByte(in); got != want {
			t.Errorf("ClampByte(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestHSVRoundTrip(t *testing.T) {
	for _, c := range []lumo.Color{{255, 0, 0}, {0, 128, 255}, {10, 200, 30}, {0, 0, 0}} {
		h, s, v := c.HSV()
		back := lumo.HSVColor(h, s, v)
		for i := range c {
			if d := back[i] - c[i]; d > 0.01 || d < -0.01 {
				t.Errorf("HSV round trip of %v gave %v", c, back)
				break
			}
		}
	}
}

func TestBlend(t *testing.T) {
	a, b := lumo.Color{255, 0, 100}, lumo.Color{0, 255, 50}
	if got := lumo.Blend(a, b, lumo.BlendLighten); got != (lumo.Color{255, 255, 100}) {
		t.Errorf("lighten = %v", got)
	}
	if got := lumo.Blend(a, b, lumo.BlendDarken); got != (lumo.Color{0, 0, 50}) {
		t.Errorf("darken = %v", got)
	}
	if got := lumo.Blend(lumo.Color{255, 255, 255}, b, lumo.BlendMultiply); got != b {
		t.Errorf("multiply by white = %v, want %v", got, b)
	}
}
