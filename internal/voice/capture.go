package voice

import (
	"errors"
	"strings"
)

// Mode selects when captured speech is handed to the interpreter.
type Mode string

const (
	// ModeBatch interprets the whole transcript when listening stops.
	ModeBatch Mode = "batch"
	// ModeContinuous interprets each finalized utterance as it arrives.
	ModeContinuous Mode = "continuous"
)

// ParseMode maps a config value to a Mode, defaulting to batch.
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeContinuous)) {
		return ModeContinuous
	}
	return ModeBatch
}

var (
	// ErrNotListening is returned for transcript events outside a capture.
	ErrNotListening = errors.New("voice: not listening")
	// ErrWrongMode is returned when an event does not apply to the capture mode.
	ErrWrongMode = errors.New("voice: event not valid in this capture mode")
)

// Capture tracks one listening session. It is not safe for concurrent use;
// the owning form session serializes access.
type Capture struct {
	mode       Mode
	listening  bool
	transcript string
}

// NewCapture returns an idle capture.
func NewCapture(mode Mode) *Capture {
	if mode != ModeContinuous {
		mode = ModeBatch
	}
	return &Capture{mode: mode}
}

// Mode reports the capture mode.
func (c *Capture) Mode() Mode { return c.mode }

// Listening reports whether a capture is in progress.
func (c *Capture) Listening() bool { return c.listening }

// Current returns the transcript captured so far.
func (c *Capture) Current() string { return c.transcript }

// Start begins listening with an empty transcript. Starting while already
// listening restarts the capture.
func (c *Capture) Start() {
	c.listening = true
	c.transcript = ""
}

// Transcript replaces the running transcript with the recognizer's latest
// full text.
func (c *Capture) Transcript(text string) error {
	if !c.listening {
		return ErrNotListening
	}
	c.transcript = text
	return nil
}

// Stop ends listening and returns the transcript to interpret. In continuous
// mode utterances were already handed over by Finalize, so pending interim
// text is discarded and Stop returns "".
func (c *Capture) Stop() (string, error) {
	if !c.listening {
		return "", ErrNotListening
	}
	out := c.transcript
	c.listening = false
	c.transcript = ""
	if c.mode == ModeContinuous {
		return "", nil
	}
	return out, nil
}

// Finalize hands over one finished utterance in continuous mode.
func (c *Capture) Finalize(utterance string) (string, error) {
	if c.mode != ModeContinuous {
		return "", ErrWrongMode
	}
	if !c.listening {
		return "", ErrNotListening
	}
	c.transcript = ""
	return utterance, nil
}
