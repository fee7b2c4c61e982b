package domain_test

import (
	"testing"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestState_SnapshotIsolation(t *testing.T) {
	s := domain.NewState()
	s.Turns = append(s.Turns, domain.Turn{Role: domain.RoleUser, Content: "Kyoto"})
	s.Constraints = &domain.Constraints{Interests: []string{"food"}}

	snap := s.Snapshot()
	snap.Turns[0].Content = "changed"
	snap.Constraints.Interests[0] = "changed"

	assert.Equal(t, "Kyoto", s.Turns[0].Content)
	assert.Equal(t, "food", s.Constraints.Interests[0])
}

func TestState_CanConfirm(t *testing.T) {
	s := domain.NewState()
	assert.False(t, s.CanConfirm())

	s.Constraints = &domain.Constraints{IsComplete: true}
	assert.True(t, s.CanConfirm())

	s.Itinerary = &domain.Itinerary{Days: []domain.Day{{DayNumber: 1}}}
	assert.False(t, s.CanConfirm())
}

func TestItinerary_Validate(t *testing.T) {
	var nilPlan *domain.Itinerary
	assert.ErrorIs(t, nilPlan.Validate(), domain.ErrEmptyItinerary)
	assert.ErrorIs(t, (&domain.Itinerary{TripTitle: "x"}).Validate(), domain.ErrEmptyItinerary)
	assert.NoError(t, (&domain.Itinerary{Days: []domain.Day{{DayNumber: 1}}}).Validate())
}
