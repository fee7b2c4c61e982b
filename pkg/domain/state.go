package domain

import "slices"

// Busy holds the in-flight flags. Each is set only for the duration of the
// matching backend call.
type Busy struct {
	Analyzing  bool `json:"analyzing"`
	Explaining bool `json:"explaining"`
	Planning   bool `json:"planning"`
}

// Any reports whether the assistant is thinking.
func (b Busy) Any() bool {
	return b.Analyzing || b.Explaining || b.Planning
}

// State is the conversation aggregate. The orchestrator is its only writer;
// everyone else receives snapshots.
type State struct {
	// Turns is the conversation log in conversational order.
	Turns []Turn `json:"turns"`

	// Constraints is the draft being gathered. Nil before the first turn and
	// after an itinerary has been generated.
	Constraints *Constraints `json:"constraints,omitempty"`

	// Itinerary is the finalized plan. While set, utterances are questions about it.
	Itinerary *Itinerary `json:"itinerary,omitempty"`

	Busy       Busy `json:"busy"`
	TTSEnabled bool `json:"tts_enabled"`

	// Transcript is the last voice transcript, cleared once a plan is generated.
	Transcript string `json:"transcript,omitempty"`

	// Notice is a transient status line (e.g. while planning). It is not part of the log.
	Notice string `json:"notice,omitempty"`

	// Version increases on every mutation.
	Version uint64 `json:"version"`
}

// NewState creates an empty conversation with speech enabled.
func NewState() *State {
	return &State{
		Turns:      []Turn{},
		TTSEnabled: true,
	}
}

// Snapshot returns a copy that shares nothing mutable with s.
// The itinerary is shared because it is never modified after it is received.
func (s *State) Snapshot() *State {
	out := *s
	out.Turns = slices.Clone(s.Turns)
	if out.Turns == nil {
		out.Turns = []Turn{}
	}
	if s.Constraints != nil {
		out.Constraints = s.Constraints.Clone()
	}
	return &out
}

// LastTurn returns the most recent turn, if any.
func (s *State) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// CanConfirm reports whether planning may start.
func (s *State) CanConfirm() bool {
	return s.Itinerary == nil && s.Constraints != nil && s.Constraints.IsComplete
}
