package domain

import "errors"

// ErrIgnoredInput is returned when an utterance is blank, a placeholder or noise.
var ErrIgnoredInput = errors.New("input ignored")

// ErrNotConfirmable is returned when confirmation is requested without a complete draft,
// or after an itinerary already exists.
var ErrNotConfirmable = errors.New("constraints are not ready for planning")

// ErrNoItinerary is returned when an export is requested before any itinerary exists.
var ErrNoItinerary = errors.New("no itinerary available")

// ErrEmptyItinerary is returned when the planning service answers with a plan without days.
var ErrEmptyItinerary = errors.New("itinerary has no days")

// ErrEmptyAnswer is returned when the question-answering service answers with no text.
var ErrEmptyAnswer = errors.New("answer is empty")

// ErrClosed is returned by operations submitted after the orchestrator was closed.
var ErrClosed = errors.New("orchestrator closed")

// ErrCaptureBusy is returned when a recording is requested while another session is active.
var ErrCaptureBusy = errors.New("capture already in progress")

// ErrNoActiveCapture is returned when stopping a session that is not the active recording.
var ErrNoActiveCapture = errors.New("no active capture session")

// ErrMicrophoneDenied is returned when the microphone cannot be acquired.
var ErrMicrophoneDenied = errors.New("microphone permission denied")

// ErrNoVoices is returned by local synthesis when the platform exposes no voices.
var ErrNoVoices = errors.New("no local voices available")

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// ErrStale resolves operations that were superseded by a new trip.
var ErrStale = errors.New("superseded by a new trip")
