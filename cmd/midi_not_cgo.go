//go:build !cgo

package cmd

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo/config"
	"github.com/vsariola/lumo/playback"
)

// OpenMIDI fails if an input is configured: without cgo, there is no MIDI
// driver.
func OpenMIDI(broker *playback.Broker, c config.MIDIConfig, log *logrus.Entry) (func(), error) {
	if c.Input == "" && !c.TakeFirst {
		return func() {}, nil
	}
	return func() {}, errors.New("MIDI input is not available in builds without cgo")
}
