package lumo

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error kinds attached to errors with ftag. Every recoverable runtime error in
// the playback core carries exactly one of these, so callers can decide on a
// policy without matching message strings.
const (
	ValidationError       ftag.Kind = "VALIDATION"
	GraphEvaluationError  ftag.Kind = "GRAPH_EVALUATION"
	TransportError        ftag.Kind = "TRANSPORT"
	ResourceNotFoundError ftag.Kind = "RESOURCE_NOT_FOUND"
	AudioDecodeError      ftag.Kind = "AUDIO_DECODE"
)

// IsKind reports whether err was tagged with kind anywhere in its chain.
func IsKind(err error, kind ftag.Kind) bool {
	if err == nil {
		return false
	}
	return ftag.Get(err) == kind
}

// Errorf returns a new error tagged with kind.
func Errorf(kind ftag.Kind, msg string) error {
	return fault.New(msg, ftag.With(kind))
}

// Wrapf wraps err with msg and tags it with kind. Returns nil if err is nil.
func Wrapf(err error, kind ftag.Kind, msg string) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(err, fmsg.With(msg), ftag.With(kind))
}
