package orchestrator

import "github.com/aretw0/tripvoice/pkg/domain"

// Reducers are the only code that mutates the conversation state.
// They run under the orchestrator lock, one per event.

// acceptUtterance logs the user turn and marks the route busy.
func acceptUtterance(s *domain.State, u domain.Utterance, route Route) {
	appendTurn(s, domain.RoleUser, u.Text)
	if u.Source == domain.SourceVoice {
		s.Transcript = u.Text
	}
	switch route {
	case RouteConstraints:
		if s.Constraints == nil {
			s.Constraints = &domain.Constraints{}
		}
		s.Busy.Analyzing = true
	case RouteQuestion:
		s.Busy.Explaining = true
	}
}

// applyConstraints installs the merged draft and logs the reply.
func applyConstraints(s *domain.State, c *domain.Constraints, reply string) {
	s.Constraints = c
	appendTurn(s, domain.RoleAssistant, reply)
	s.Busy.Analyzing = false
}

// applyAnswer logs the explanation verbatim.
func applyAnswer(s *domain.State, answer string) {
	appendTurn(s, domain.RoleAssistant, answer)
	s.Busy.Explaining = false
}

// beginPlanning marks planning in progress.
func beginPlanning(s *domain.State) {
	s.Busy.Planning = true
	s.Notice = domain.ReplyPlanning
}

// applyItinerary installs the plan and starts the question phase.
func applyItinerary(s *domain.State, it *domain.Itinerary) {
	s.Itinerary = it
	s.Constraints = nil
	s.Transcript = ""
	s.Notice = ""
	appendTurn(s, domain.RoleAssistant, domain.ReplyPlanReady)
	s.Busy.Planning = false
}

// failCall logs an apology and clears the busy flag. Nothing else changes.
func failCall(s *domain.State, route Route, apology string) {
	appendTurn(s, domain.RoleAssistant, apology)
	abandonCall(s, route)
}

// abandonCall clears the busy flag of a call whose response is discarded.
func abandonCall(s *domain.State, route Route) {
	switch route {
	case RouteConstraints:
		s.Busy.Analyzing = false
	case RouteQuestion:
		s.Busy.Explaining = false
	case RoutePlanning:
		s.Busy.Planning = false
		s.Notice = ""
	}
}

// resetTrip drops the plan and the draft so the next utterance starts a new trip.
// The conversation log is kept.
func resetTrip(s *domain.State) {
	s.Itinerary = nil
	s.Constraints = nil
	s.Transcript = ""
}

// setSpeech toggles spoken replies.
func setSpeech(s *domain.State, enabled bool) {
	s.TTSEnabled = enabled
}

func appendTurn(s *domain.State, role domain.Role, content string) {
	s.Turns = append(s.Turns, domain.Turn{Role: role, Content: content})
}
