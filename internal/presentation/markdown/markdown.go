// Package markdown renders conversation state for people. It is pure: every
// function takes a snapshot and returns text, and every optional field
// renders as a neutral placeholder.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tripvoice/pkg/domain"
)

const (
	notSet      = "_Not set_"
	noItinerary = "_No itinerary yet. Tell me where you'd like to go._"
	noTurns     = "_Say hello to start planning._"
)

// Constraints renders the draft as a checklist of the required information,
// followed by preferences and tags. Travelers and pace show their defaults
// when unset.
func Constraints(c *domain.Constraints) string {
	if c == nil {
		c = &domain.Constraints{}
	}
	var sb strings.Builder
	sb.WriteString("## Trip details\n\n")

	duration := ""
	if c.DurationDays != nil {
		duration = fmt.Sprintf("%d days", *c.DurationDays)
	}
	dates := deref(c.StartDate)
	if c.EndDate != nil {
		dates = strings.TrimSpace(dates + " to " + *c.EndDate)
	}

	checklist := []struct {
		label string
		value string
	}{
		{"Destination", deref(c.DestinationCity)},
		{"Duration", duration},
		{"Start date", dates},
		{"Budget", deref(c.BudgetLevel)},
	}
	for _, item := range checklist {
		mark, value := "[ ]", notSet
		if item.value != "" {
			mark, value = "[x]", item.value
		}
		fmt.Fprintf(&sb, "- %s **%s**: %s\n", mark, item.label, value)
	}

	travelers := domain.DefaultTravelersCount
	if c.TravelersCount != nil {
		travelers = *c.TravelersCount
	}
	pace := domain.DefaultPace
	if c.Pace != nil && *c.Pace != "" {
		pace = *c.Pace
	}
	sb.WriteString("\n")
	if c.Origin != nil {
		fmt.Fprintf(&sb, "**From**: %s  \n", *c.Origin)
	}
	fmt.Fprintf(&sb, "**Travelers**: %d  \n**Pace**: %s\n", travelers, pace)

	writeTags(&sb, "Interests", c.Interests)
	writeTags(&sb, "Must visit", c.MustVisit)
	writeTags(&sb, "Avoid", c.Avoid)

	if len(c.MissingInfo) > 0 {
		fmt.Fprintf(&sb, "\n_Still needed: %s_\n", strings.Join(c.MissingInfo, ", "))
	}
	if c.IsComplete {
		sb.WriteString("\n**Ready to plan.** Confirm to generate your itinerary.\n")
	}
	return sb.String()
}

// Itinerary renders the plan day by day.
func Itinerary(it *domain.Itinerary) string {
	if it == nil || len(it.Days) == 0 {
		return noItinerary + "\n"
	}
	var sb strings.Builder
	title := it.TripTitle
	if title == "" {
		title = "Your itinerary"
	}
	fmt.Fprintf(&sb, "# %s\n", title)
	if it.TotalCostEstimate != "" {
		fmt.Fprintf(&sb, "\n**Estimated cost**: %s\n", it.TotalCostEstimate)
	}

	for _, day := range it.Days {
		fmt.Fprintf(&sb, "\n## Day %d\n\n", day.DayNumber)
		if len(day.Blocks) == 0 {
			sb.WriteString("_Free day._\n")
			continue
		}
		for _, b := range day.Blocks {
			writeBlock(&sb, b)
		}
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, b domain.Block) {
	if b.TravelTimeFromPrevious != "" {
		fmt.Fprintf(sb, "  _Travel: %s_\n", b.TravelTimeFromPrevious)
	}

	label := b.TimeBlock
	if b.StartTime != "" && b.EndTime != "" {
		label = fmt.Sprintf("%s (%s-%s)", label, b.StartTime, b.EndTime)
	}
	name := b.POI.Name
	if name == "" {
		name = "Unnamed stop"
	}
	fmt.Fprintf(sb, "- **%s**: %s", label, name)

	var facts []string
	if b.POI.Category != "" {
		facts = append(facts, b.POI.Category)
	}
	if b.POI.AverageDurationMinutes > 0 {
		facts = append(facts, fmt.Sprintf("%d min", b.POI.AverageDurationMinutes))
	}
	if b.POI.Rating != nil {
		facts = append(facts, fmt.Sprintf("rated %.1f", *b.POI.Rating))
	}
	if len(facts) > 0 {
		fmt.Fprintf(sb, " (%s)", strings.Join(facts, ", "))
	}
	sb.WriteString("\n")

	if b.POI.Description != "" {
		fmt.Fprintf(sb, "  %s\n", b.POI.Description)
	}
	if len(b.POI.Details) > 0 {
		keys := make([]string, 0, len(b.POI.Details))
		for k := range b.POI.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(sb, "  - %s: %v\n", k, b.POI.Details[k])
		}
	}
}

// Turn renders one conversation entry.
func Turn(t domain.Turn) string {
	who := "You"
	if t.Role == domain.RoleAssistant {
		who = "Assistant"
	}
	return fmt.Sprintf("**%s**: %s\n", who, t.Content)
}

// Turns renders the conversation log.
func Turns(turns []domain.Turn) string {
	if len(turns) == 0 {
		return noTurns + "\n"
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(Turn(t))
	}
	return sb.String()
}

// Status renders the transient status line, or "" when idle.
func Status(s *domain.State) string {
	switch {
	case s.Notice != "":
		return "_" + s.Notice + "_"
	case s.Busy.Any():
		return "_Thinking..._"
	default:
		return ""
	}
}

// Conversation renders the whole state: the itinerary when there is one,
// otherwise the draft, then the log.
func Conversation(s *domain.State) string {
	if s == nil {
		s = domain.NewState()
	}
	var sb strings.Builder
	if s.Itinerary != nil {
		sb.WriteString(Itinerary(s.Itinerary))
	} else {
		sb.WriteString(Constraints(s.Constraints))
	}
	sb.WriteString("\n## Conversation\n\n")
	sb.WriteString(Turns(s.Turns))
	if status := Status(s); status != "" {
		sb.WriteString("\n" + status + "\n")
	}
	return sb.String()
}

func writeTags(sb *strings.Builder, label string, tags []string) {
	if len(tags) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n**%s**: ", label)
	for i, tag := range tags {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(sb, "`%s`", tag)
	}
	sb.WriteString("\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
