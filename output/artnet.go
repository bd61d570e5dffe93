package output

import (
	"fmt"
	"net"
	"strconv"

	"github.com/vsariola/lumo"
)

type (
	// ArtNetState configures a channel mapped fixture reached through an
	// Art-Net node. Universe is the 15-bit port address (net, sub-net and
	// universe).
	ArtNetState struct {
		Host       string `bson:"host" yaml:"host"`
		Port       int    `bson:"port" yaml:"port"`
		Universe   int    `bson:"universe" yaml:"universe"`
		ChannelMap string `bson:"channelMap" yaml:"channelmap"`
	}

	ArtNetFixture struct {
		base
		state    ArtNetState
		conn     net.Conn
		sequence uint8
	}
)

const maxDMXChannels = 512

func DefaultArtNetState() ArtNetState {
	return ArtNetState{Host: "127.0.0.1", Port: 6454}
}

func (s ArtNetState) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("invalid port %v", s.Port))
	}
	if s.Universe < 0 || s.Universe > 0x7FFF {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("universe should be in range [0,32767], got %v", s.Universe))
	}
	if len(s.ChannelMap) > maxDMXChannels {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("channel map has %v channels, a universe holds %v", len(s.ChannelMap), maxDMXChannels))
	}
	return nil
}

// EncodeArtDMX builds an ArtDMX packet. The DMX data is padded to an even
// length of at least 2 bytes, as the protocol requires.
func EncodeArtDMX(sequence uint8, universe uint16, dmx []byte) []byte {
	n := len(dmx)
	if n < 2 {
		n = 2
	}
	n += n % 2
	packet := make([]byte, 18+n)
	copy(packet, "Art-Net\x00")
	packet[8], packet[9] = 0x00, 0x50 // OpDmx, little endian
	packet[10], packet[11] = 0, 14    // protocol version
	packet[12], packet[13] = sequence, 0
	packet[14], packet[15] = byte(universe&0xFF), byte((universe>>8)&0x7F)
	packet[16], packet[17] = byte(n>>8), byte(n)
	copy(packet[18:], dmx)
	return packet
}

func (f *ArtNetFixture) Type() Type { return ArtNet }

func (f *ArtNetFixture) State() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *ArtNetFixture) Configure(decode func(any) error) error {
	f.mu.Lock()
	s := f.state
	f.mu.Unlock()
	if err := decode(&s); err != nil {
		return lumo.Wrapf(err, lumo.ValidationError, "cannot decode artnet state")
	}
	return f.ApplyState(s)
}

func (f *ArtNetFixture) ApplyState(s ArtNetState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = nil
	f.state = s
	f.sequence = 0
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

// Send maps the colors to channels and sends them as one ArtDMX packet.
// Sequence numbers run from 1 to 255; 0 would disable resequencing on the
// receiver.
func (f *ArtNetFixture) Send(colors lumo.ColorBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil || f.state.ChannelMap == "" {
		return
	}
	f.sequence++
	if f.sequence == 0 {
		f.sequence = 1
	}
	dmx := MapChannels(f.state.ChannelMap, colorsOrBlack(colors))
	if _, err := f.conn.Write(EncodeArtDMX(f.sequence, uint16(f.state.Universe), dmx)); err != nil {
		f.warn(lumo.Wrapf(err, lumo.TransportError, fmt.Sprintf("failed to send artnet data to %v:%v", f.state.Host, f.state.Port)))
	}
}

func (f *ArtNetFixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeTransport(f.conn)
	f.conn = nil
	return nil
}
