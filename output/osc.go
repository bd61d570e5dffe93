package output

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"
	"github.com/vsariola/lumo"
)

type (
	// OSCState configures a fixture receiving its channels as a single OSC
	// blob, e.g. a media server or a bridge running on another machine.
	OSCState struct {
		Host       string `bson:"host" yaml:"host"`
		Port       int    `bson:"port" yaml:"port"`
		Address    string `bson:"address" yaml:"address"`
		ChannelMap string `bson:"channelMap" yaml:"channelmap"`
	}

	// OSCSender is implemented by *osc.Client.
	OSCSender interface {
		Send(packet osc.Packet) error
	}

	OSCFixture struct {
		base
		state  OSCState
		client OSCSender
	}
)

func DefaultOSCState() OSCState {
	return OSCState{Host: "127.0.0.1", Port: 9000, Address: "/lumo/dmx"}
}

func newOSCClient(host string, port int) OSCSender {
	return osc.NewClient(host, port)
}

func (s OSCState) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("invalid port %v", s.Port))
	}
	if len(s.Address) == 0 || s.Address[0] != '/' {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("osc address should start with '/', got %q", s.Address))
	}
	return nil
}

// EncodeOSC maps the colors to channels and wraps them in a message with a
// single blob argument.
func EncodeOSC(address, channelMap string, colors lumo.ColorBuffer) *osc.Message {
	return osc.NewMessage(address, MapChannels(channelMap, colorsOrBlack(colors)))
}

func (f *OSCFixture) Type() Type { return OSC }

func (f *OSCFixture) State() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *OSCFixture) Configure(decode func(any) error) error {
	f.mu.Lock()
	s := f.state
	f.mu.Unlock()
	if err := decode(&s); err != nil {
		return lumo.Wrapf(err, lumo.ValidationError, "cannot decode osc state")
	}
	return f.ApplyState(s)
}

// ApplyState replaces the client. OSC clients are connectionless, so this
// never fails on the transport.
func (f *OSCFixture) ApplyState(s OSCState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = nil
	f.state = s
	f.client = f.oscClient(s.Host, s.Port)
	return nil
}

func (f *OSCFixture) Send(colors lumo.ColorBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil || f.state.ChannelMap == "" {
		return
	}
	if err := f.client.Send(EncodeOSC(f.state.Address, f.state.ChannelMap, colors)); err != nil {
		f.warn(lumo.Wrapf(err, lumo.TransportError, fmt.Sprintf("failed to send osc message to %v:%v", f.state.Host, f.state.Port)))
	}
}

func (f *OSCFixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = nil
	return nil
}
