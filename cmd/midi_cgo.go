//go:build cgo

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo/config"
	"github.com/vsariola/lumo/gomidi"
	"github.com/vsariola/lumo/playback"
)

// OpenMIDI opens the configured MIDI input, if any, and forwards its notes
// to the scheduler. The returned function closes the driver.
func OpenMIDI(broker *playback.Broker, c config.MIDIConfig, log *logrus.Entry) (func(), error) {
	if c.Input == "" && !c.TakeFirst {
		return func() {}, nil
	}
	context := gomidi.NewContext(broker, log)
	if err := context.TryToOpenBy(c.Input, c.TakeFirst); err != nil {
		context.Close()
		return func() {}, err
	}
	return context.Close, nil
}
