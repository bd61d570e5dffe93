// Package output implements the fixtures: protocol encoders turning color
// buffers into wire frames, and the transports sending them.
//
// Sending is best-effort. A failed send never returns an error to the
// caller; it is recorded in the fixture's warning list instead.
package output

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
)

type (
	Type string

	// Fixture is an addressable lighting output. Configure and Close are
	// called from the playback loop; Send is called from the fixture's
	// dispatch goroutine. Implementations synchronize internally.
	Fixture interface {
		Type() Type
		// State returns a copy of the current protocol configuration.
		State() any
		// Configure decodes a new protocol configuration with decode, which
		// fills in a pointer to the fixture's state struct, and applies it.
		// The transport is always torn down and recreated.
		Configure(decode func(v any) error) error
		Send(colors lumo.ColorBuffer)
		Warnings() []string
		Close() error
	}

	// Option customizes how fixtures open their transports.
	Option func(*options)

	options struct {
		logger     *logrus.Entry
		dial       func(network, address string) (net.Conn, error)
		openSerial func(port string, baudRate int) (io.WriteCloser, error)
		oscClient  func(host string, port int) OSCSender
	}

	// base holds what all fixtures share: the lock guarding the transport
	// and the warning list.
	base struct {
		mu       sync.Mutex
		warnings []string
		log      *logrus.Entry
		options
	}
)

const (
	Dummy  Type = "dummy"
	DRGB   Type = "drgb"
	Serial Type = "serial"
	ArtNet Type = "artnet"
	OSC    Type = "osc"
)

// maxWarnings bounds the warning list; older warnings are dropped first.
const maxWarnings = 16

// Types lists the fixture types New accepts.
var Types = []Type{Dummy, DRGB, Serial, ArtNet, OSC}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.logger = log }
}

// WithDialer replaces net.Dial for the UDP based fixtures.
func WithDialer(dial func(network, address string) (net.Conn, error)) Option {
	return func(o *options) { o.dial = dial }
}

// WithSerialOpener replaces the function opening serial ports.
func WithSerialOpener(open func(port string, baudRate int) (io.WriteCloser, error)) Option {
	return func(o *options) { o.openSerial = open }
}

// WithOSCClient replaces the function creating OSC clients.
func WithOSCClient(newClient func(host string, port int) OSCSender) Option {
	return func(o *options) { o.oscClient = newClient }
}

// New creates a fixture of type t with its default configuration applied.
func New(t Type, opts ...Option) (Fixture, error) {
	o := options{
		logger:     logrus.NewEntry(logrus.StandardLogger()),
		dial:       net.Dial,
		openSerial: openSerialPort,
		oscClient:  newOSCClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var f interface {
		Fixture
		setup(o options, t Type)
	}
	switch t {
	case Dummy:
		return &DummyFixture{}, nil
	case DRGB:
		f = &DRGBFixture{state: DefaultDRGBState()}
	case Serial:
		f = &SerialFixture{state: DefaultSerialState()}
	case ArtNet:
		f = &ArtNetFixture{state: DefaultArtNetState()}
	case OSC:
		f = &OSCFixture{state: DefaultOSCState()}
	default:
		return nil, lumo.Errorf(lumo.ValidationError, fmt.Sprintf("unknown output type %q", t))
	}
	f.setup(o, t)
	// a default configuration that cannot open its transport is not an error
	// here; the failure is visible in the warnings
	f.Configure(func(any) error { return nil })
	return f, nil
}

func (b *base) setup(o options, t Type) {
	b.options = o
	b.log = o.logger.WithField("fixture", string(t))
}

// warn records a warning. Must be called with b.mu held.
func (b *base) warn(err error) {
	b.log.WithError(err).Warn("output warning")
	if n := len(b.warnings); n > 0 && b.warnings[n-1] == err.Error() {
		return
	}
	b.warnings = append(b.warnings, err.Error())
	if len(b.warnings) > maxWarnings {
		b.warnings = b.warnings[len(b.warnings)-maxWarnings:]
	}
}

func (b *base) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.warnings...)
}

// closeTransport closes c if it is not nil, recording a failure as a
// warning. Must be called with b.mu held.
func (b *base) closeTransport(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		b.warn(lumo.Wrapf(err, lumo.TransportError, "closing transport failed"))
	}
}

// DummyFixture accepts and discards everything.
type DummyFixture struct{}

func (*DummyFixture) Type() Type { return Dummy }
func (*DummyFixture) State() any { return struct{}{} }
func (*DummyFixture) Configure(func(any) error) error { return nil }
func (*DummyFixture) Send(lumo.ColorBuffer) {}
func (*DummyFixture) Warnings() []string { return nil }
func (*DummyFixture) Close() error { return nil }

// colorsOrBlack returns a single black color for missing data.
func colorsOrBlack(colors lumo.ColorBuffer) lumo.ColorBuffer {
	if len(colors) == 0 {
		return lumo.ColorBuffer{lumo.Black}
	}
	return colors
}
