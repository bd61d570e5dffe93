package output

import (
	"fmt"
	"net"
	"strconv"

	"github.com/vsariola/lumo"
)

type (
	// DRGBState configures a fixture speaking the WLED "DRGB" realtime UDP
	// protocol.
	DRGBState struct {
		Host     string `bson:"host" yaml:"host"`
		Port     int    `bson:"port" yaml:"port"`
		Timeout  int    `bson:"timeout" yaml:"timeout"` // seconds before the device returns to its normal mode, 255 = never
		LEDCount int    `bson:"ledCount" yaml:"ledcount"`
	}

	DRGBFixture struct {
		base
		state DRGBState
		conn  net.Conn
	}
)

// maxDRGBLEDs is the largest strip that fits in one DRGB datagram.
const maxDRGBLEDs = 490

func DefaultDRGBState() DRGBState {
	return DRGBState{Host: "127.0.0.1", Port: 21324, Timeout: 255, LEDCount: 60}
}

func (s DRGBState) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("invalid port %v", s.Port))
	}
	if s.Timeout < 0 || s.Timeout > 255 {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("timeout should be in range [0,255], got %v", s.Timeout))
	}
	if s.LEDCount <= 0 || s.LEDCount > maxDRGBLEDs {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("led count should be in range [1,%v], got %v", maxDRGBLEDs, s.LEDCount))
	}
	return nil
}

// EncodeDRGB resamples colors to ledCount and encodes the frame
// [2, timeout, R0, G0, B0, R1, ...] of length 2+3*ledCount.
func EncodeDRGB(timeout byte, ledCount int, colors lumo.ColorBuffer) []byte {
	colors = colorsOrBlack(colors).Resample(ledCount)
	frame := make([]byte, 2+3*ledCount)
	frame[0] = 2
	frame[1] = timeout
	for i, c := range colors {
		b := c.Bytes()
		copy(frame[2+3*i:], b[:])
	}
	return frame
}

func (f *DRGBFixture) Type() Type { return DRGB }

func (f *DRGBFixture) State() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *DRGBFixture) Configure(decode func(any) error) error {
	f.mu.Lock()
	s := f.state
	f.mu.Unlock()
	if err := decode(&s); err != nil {
		return lumo.Wrapf(err, lumo.ValidationError, "cannot decode drgb state")
	}
	return f.ApplyState(s)
}

// ApplyState validates s, closes the current socket and opens a new one.
func (f *DRGBFixture) ApplyState(s DRGBState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = nil
	f.state = s
	f.closeTransport(f.conn)
	f.conn = nil
	conn, err := f.dial("udp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	if err != nil {
		err = lumo.Wrapf(err, lumo.TransportError, "cannot open udp socket")
		f.warn(err)
		return err
	}
	f.conn = conn
	return nil
}

func (f *DRGBFixture) Send(colors lumo.ColorBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return
	}
	frame := EncodeDRGB(byte(f.state.Timeout), f.state.LEDCount, colors)
	if _, err := f.conn.Write(frame); err != nil {
		f.warn(lumo.Wrapf(err, lumo.TransportError, fmt.Sprintf("failed to send drgb data to %v:%v", f.state.Host, f.state.Port)))
	}
}

func (f *DRGBFixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeTransport(f.conn)
	f.conn = nil
	return nil
}
