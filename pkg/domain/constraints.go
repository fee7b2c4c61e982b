package domain

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// Constraints is the accumulating trip draft. Trip fields survive across
// responses; the status fields (IsComplete, MissingInfo, ClarificationQuestion,
// SuggestedResponse) describe only the latest response.
type Constraints struct {
	Origin          *string  `json:"origin,omitempty" mapstructure:"origin"`
	DestinationCity *string  `json:"destination_city,omitempty" mapstructure:"destination_city"`
	StartDate       *string  `json:"start_date,omitempty" mapstructure:"start_date"`
	EndDate         *string  `json:"end_date,omitempty" mapstructure:"end_date"`
	DurationDays    *int     `json:"duration_days,omitempty" mapstructure:"duration_days"`
	BudgetLevel     *string  `json:"budget_level,omitempty" mapstructure:"budget_level"`
	TravelersCount  *int     `json:"travelers_count,omitempty" mapstructure:"travelers_count"`
	Pace            *string  `json:"pace,omitempty" mapstructure:"pace"`
	Interests       []string `json:"interests,omitempty" mapstructure:"interests"`
	MustVisit       []string `json:"must_visit,omitempty" mapstructure:"must_visit"`
	Avoid           []string `json:"avoid,omitempty" mapstructure:"avoid"`

	IsComplete            bool     `json:"is_complete" mapstructure:"is_complete"`
	MissingInfo           []string `json:"missing_info,omitempty" mapstructure:"missing_info"`
	ClarificationQuestion *string  `json:"clarification_question,omitempty" mapstructure:"clarification_question"`
	SuggestedResponse     *string  `json:"suggested_response,omitempty" mapstructure:"suggested_response"`
}

// Clone returns a deep copy. A nil receiver yields an empty draft.
func (c *Constraints) Clone() *Constraints {
	if c == nil {
		return &Constraints{}
	}
	out := *c
	out.Origin = clonePtr(c.Origin)
	out.DestinationCity = clonePtr(c.DestinationCity)
	out.StartDate = clonePtr(c.StartDate)
	out.EndDate = clonePtr(c.EndDate)
	out.DurationDays = clonePtr(c.DurationDays)
	out.BudgetLevel = clonePtr(c.BudgetLevel)
	out.TravelersCount = clonePtr(c.TravelersCount)
	out.Pace = clonePtr(c.Pace)
	out.Interests = slices.Clone(c.Interests)
	out.MustVisit = slices.Clone(c.MustVisit)
	out.Avoid = slices.Clone(c.Avoid)
	out.MissingInfo = slices.Clone(c.MissingInfo)
	out.ClarificationQuestion = clonePtr(c.ClarificationQuestion)
	out.SuggestedResponse = clonePtr(c.SuggestedResponse)
	return &out
}

// Reply picks the assistant wording for this draft: the suggested response,
// then the clarification question, then a completion acknowledgment, then a
// generic prompt for more detail.
func (c *Constraints) Reply() string {
	switch {
	case c == nil:
		return ReplyNeedMoreDetail
	case c.SuggestedResponse != nil && *c.SuggestedResponse != "":
		return *c.SuggestedResponse
	case c.ClarificationQuestion != nil && *c.ClarificationQuestion != "":
		return *c.ClarificationQuestion
	case c.IsComplete:
		return ReplyConstraintsComplete
	default:
		return ReplyNeedMoreDetail
	}
}

// MergeConstraints folds a decoded intent response into the previous draft.
// Keys absent from fields keep their previous value, keys explicitly set to
// null are cleared, and everything else overwrites. Status fields are always
// taken from the response. Values are decoded weakly ("3" becomes 3).
func MergeConstraints(prev *Constraints, fields map[string]any) (*Constraints, error) {
	next := prev.Clone()
	next.IsComplete = false
	next.MissingInfo = nil
	next.ClarificationQuestion = nil
	next.SuggestedResponse = nil

	patch := make(map[string]any, len(fields))
	for key, value := range fields {
		next.clear(key)
		if value != nil {
			patch[key] = value
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           next,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build constraints decoder: %w", err)
	}
	if err := decoder.Decode(patch); err != nil {
		return nil, fmt.Errorf("failed to decode constraints: %w", err)
	}
	return next, nil
}

// clear resets the field named by its wire key. Unknown keys are ignored.
func (c *Constraints) clear(key string) {
	switch key {
	case "origin":
		c.Origin = nil
	case "destination_city":
		c.DestinationCity = nil
	case "start_date":
		c.StartDate = nil
	case "end_date":
		c.EndDate = nil
	case "duration_days":
		c.DurationDays = nil
	case "budget_level":
		c.BudgetLevel = nil
	case "travelers_count":
		c.TravelersCount = nil
	case "pace":
		c.Pace = nil
	case "interests":
		c.Interests = nil
	case "must_visit":
		c.MustVisit = nil
	case "avoid":
		c.Avoid = nil
	case "is_complete":
		c.IsComplete = false
	case "missing_info":
		c.MissingInfo = nil
	case "clarification_question":
		c.ClarificationQuestion = nil
	case "suggested_response":
		c.SuggestedResponse = nil
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for building drafts in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
