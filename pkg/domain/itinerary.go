package domain

// Itinerary is the plan returned by the planning service. It is replaced
// wholesale by a new planning response and never edited in place.
type Itinerary struct {
	TripTitle         string `json:"trip_title"`
	Days              []Day  `json:"days"`
	TotalCostEstimate string `json:"total_cost_estimate,omitempty"`
}

// Day is one day of the plan, blocks in visiting order.
type Day struct {
	DayNumber int     `json:"day_number"`
	Blocks    []Block `json:"blocks"`
}

// Block is a time slot spent at one point of interest.
type Block struct {
	TimeBlock              string `json:"time_block"`
	POI                    POI    `json:"poi"`
	StartTime              string `json:"start_time,omitempty"`
	EndTime                string `json:"end_time,omitempty"`
	TravelTimeFromPrevious string `json:"travel_time_from_previous,omitempty"`
}

// POI describes a point of interest.
type POI struct {
	Name                   string         `json:"name"`
	Description            string         `json:"description"`
	Category               string         `json:"category"`
	AverageDurationMinutes int            `json:"average_duration_minutes"`
	Rating                 *float64       `json:"rating,omitempty"`
	Details                map[string]any `json:"details,omitempty"`
}

// Validate rejects plans that cannot be presented.
func (it *Itinerary) Validate() error {
	if it == nil || len(it.Days) == 0 {
		return ErrEmptyItinerary
	}
	return nil
}

// Day returns the day with the given number, if present.
func (it *Itinerary) Day(number int) (Day, bool) {
	if it == nil {
		return Day{}, false
	}
	for _, d := range it.Days {
		if d.DayNumber == number {
			return d, true
		}
	}
	return Day{}, false
}
