package output

import (
	"fmt"
	"io"

	"github.com/vsariola/lumo"
	"go.bug.st/serial"
)

type (
	// SerialState configures a channel mapped fixture behind a serial port,
	// e.g. a microcontroller bridging to DMX.
	SerialState struct {
		Port       string `bson:"port" yaml:"port"`
		ChannelMap string `bson:"channelMap" yaml:"channelmap"`
		BaudRate   int    `bson:"baudRate" yaml:"baudrate"`
	}

	SerialFixture struct {
		base
		state SerialState
		port  io.WriteCloser
	}
)

func DefaultSerialState() SerialState {
	return SerialState{BaudRate: 115200}
}

// MapChannels produces one byte per character of channelMap. Each of the
// letters r, g and b reads its own component from the colors with an
// independent cursor: the n-th 'r' reads the red component of the n-th
// color, regardless of how many 'g' and 'b' channels came before it. A
// channel whose cursor has run past the colors, or whose letter is unknown,
// is 0.
func MapChannels(channelMap string, colors lumo.ColorBuffer) []byte {
	ret := make([]byte, len(channelMap))
	var cursors [3]int
	for i := 0; i < len(channelMap); i++ {
		var component int
		switch channelMap[i] {
		case 'r':
			component = 0
		case 'g':
			component = 1
		case 'b':
			component = 2
		default:
			continue
		}
		if cursors[component] < len(colors) {
			ret[i] = lumo.ClampByte(colors[cursors[component]][component])
			cursors[component]++
		}
	}
	return ret
}

// EncodeSerial prefixes the mapped channels with their count as a big
// endian 16-bit integer.
func EncodeSerial(channelMap string, colors lumo.ColorBuffer) []byte {
	channels := MapChannels(channelMap, colorsOrBlack(colors))
	frame := make([]byte, 2, 2+len(channels))
	frame[0] = byte(len(channels) / 256)
	frame[1] = byte(len(channels) % 256)
	return append(frame, channels...)
}

func openSerialPort(name string, baudRate int) (io.WriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baudRate})
}

func (s SerialState) Validate() error {
	if s.BaudRate <= 0 {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("invalid baud rate %v", s.BaudRate))
	}
	if len(s.ChannelMap) > 65535 {
		return lumo.Errorf(lumo.ValidationError, "channel map too long")
	}
	return nil
}

func (f *SerialFixture) Type() Type { return Serial }

func (f *SerialFixture) State() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *SerialFixture) Configure(decode func(any) error) error {
	f.mu.Lock()
	s := f.state
	f.mu.Unlock()
	if err := decode(&s); err != nil {
		return lumo.Wrapf(err, lumo.ValidationError, "cannot decode serial state")
	}
	return f.ApplyState(s)
}

// ApplyState closes the current port and opens the configured one. An
// empty port name leaves the fixture without a transport.
func (f *SerialFixture) ApplyState(s SerialState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = nil
	f.state = s
	f.closeTransport(f.port)
	f.port = nil
	if s.Port == "" {
		return nil
	}
	port, err := f.openSerial(s.Port, s.BaudRate)
	if err != nil {
		err = lumo.Wrapf(err, lumo.TransportError, fmt.Sprintf("failed to open port %v", s.Port))
		f.warn(err)
		return err
	}
	f.port = port
	return nil
}

func (f *SerialFixture) Send(colors lumo.ColorBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.port == nil || f.state.ChannelMap == "" {
		return
	}
	if _, err := f.port.Write(EncodeSerial(f.state.ChannelMap, colors)); err != nil {
		f.warn(lumo.Wrapf(err, lumo.TransportError, "failed to send data"))
		return
	}
	f.warnings = nil
}

func (f *SerialFixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeTransport(f.port)
	f.port = nil
	return nil
}
