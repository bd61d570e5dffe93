package library

import "github.com/vsariola/lumo"

// Mixdown sums the clips of all audio segments between the ticks from and
// to, each clipped to the length of its segment.
func (p *Project) Mixdown(from, to int) lumo.AudioBuffer {
	if to <= from {
		return nil
	}
	offset := p.Tempo.TicksToSeconds(float64(from))
	frames := int((p.Tempo.TicksToSeconds(float64(to)) - offset) * lumo.SampleRate)
	out := make(lumo.AudioBuffer, frames)
	for _, s := range p.Timeline.Segments() {
		item, _ := p.Library.Item(s.PayloadID)
		a, ok := item.(*AudioItem)
		if !ok || a.Silent() || s.End <= from || s.Start >= to {
			continue
		}
		start := int((p.Tempo.TicksToSeconds(float64(s.Start)) - offset) * lumo.SampleRate)
		length := int(p.Tempo.TicksToSeconds(float64(s.Length())) * lumo.SampleRate)
		for i := 0; i < length && i < len(a.Buffer); i++ {
			j := start + i
			if j < 0 {
				continue
			}
			if j >= len(out) {
				break
			}
			out[j][0] += a.Buffer[i][0]
			out[j][1] += a.Buffer[i][1]
		}
	}
	return out
}
