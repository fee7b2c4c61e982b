package orchestrator

import "github.com/aretw0/tripvoice/pkg/domain"

// Route is the path an utterance takes.
type Route string

const (
	// RouteConstraints gathers trip constraints through the intent service.
	RouteConstraints Route = "constraints"
	// RouteQuestion asks the explanation service about the current itinerary.
	RouteQuestion Route = "question"
	// RoutePlanning generates an itinerary from a complete draft.
	RoutePlanning Route = "planning"
	// RouteExport renders the itinerary as a document.
	RouteExport Route = "export"
)

// Classify decides the route of an utterance from the state at dispatch time.
// While an itinerary exists every utterance is a question about it.
func Classify(s *domain.State) Route {
	if s.Itinerary != nil {
		return RouteQuestion
	}
	return RouteConstraints
}
