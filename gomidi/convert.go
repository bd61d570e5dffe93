// Package gomidi feeds notes played on a MIDI input device to the scheduler
// as live notes. Opening devices needs cgo; without it only the message
// conversion is available.
package gomidi

import (
	"github.com/vsariola/lumo/playback"
	"gitlab.com/gomidi/midi/v2"
)

// NoteMsg converts note on and note off messages to live notes. A note on
// with zero velocity is a note off. Other messages are ignored.
func NoteMsg(msg midi.Message) (playback.LiveNoteMsg, bool) {
	var channel, key, velocity uint8
	if msg.GetNoteStart(&channel, &key, &velocity) {
		return playback.LiveNoteMsg{On: true, Channel: int(channel), Key: int(key), Velocity: float64(velocity) / 127}, true
	}
	if msg.GetNoteEnd(&channel, &key) {
		return playback.LiveNoteMsg{Channel: int(channel), Key: int(key)}, true
	}
	return playback.LiveNoteMsg{}, false
}
