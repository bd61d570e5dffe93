//go:build cgo

package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo/playback"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	Context struct {
		driver    *rtmididrv.Driver
		broker    *playback.Broker
		currentIn drivers.In
		stop      func()
		log       *logrus.Entry
	}

	Device struct {
		context *Context
		in      drivers.In
	}
)

// NewContext opens the driver. If that fails the context has no devices.
func NewContext(broker *playback.Broker, log *logrus.Entry) *Context {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Context{broker: broker, log: log.WithField("component", "midi")}
	var err error
	if c.driver, err = rtmididrv.New(); err != nil {
		c.log.WithError(err).Warn("MIDI driver not available")
		c.driver = nil
	}
	return c
}

func (c *Context) InputDevices() []Device {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		c.log.WithError(err).Warn("listing MIDI inputs failed")
		return nil
	}
	ret := make([]Device, len(ins))
	for i, in := range ins {
		ret[i] = Device{context: c, in: in}
	}
	return ret
}

// Open opens the input device, closing the currently open one if necessary.
func (d Device) Open() error {
	c := d.context
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return errors.New("no driver available")
	}
	c.closeCurrent()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, c.handleMessage)
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn, c.stop = d.in, stop
	c.log.WithField("device", d.String()).Info("MIDI input opened")
	return nil
}

func (d Device) String() string {
	return d.in.String()
}

// TryToOpenBy opens the first device whose name starts with namePrefix, or
// the first device at all if takeFirst is set.
func (c *Context) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	for _, input := range c.InputDevices() {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			return input.Open()
		}
	}
	if takeFirst {
		return errors.New("could not find any MIDI input")
	}
	return fmt.Errorf("could not find any MIDI input starting with %q", namePrefix)
}

func (c *Context) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

func (c *Context) closeCurrent() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.HasDeviceOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

func (c *Context) Close() {
	if c.driver == nil {
		return
	}
	c.closeCurrent()
	c.driver.Close()
}

func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	m, ok := NoteMsg(msg)
	if !ok {
		return
	}
	// if the scheduler is lagging, the note is lost
	if !playback.TrySend(c.broker.ToScheduler, any(m)) {
		c.log.WithField("key", m.Key).Debug("scheduler queue full, note dropped")
	}
}
