package types

import "fmt"

// EventCategory is the semantic tag of a normalized event
type EventCategory string

const (
	EventCategoryMeeting    EventCategory = "meeting"
	EventCategoryTask       EventCategory = "task"
	EventCategoryMessage    EventCategory = "message"
	EventCategoryDeployment EventCategory = "deployment"
)

// AllEventCategories returns all valid event categories
func AllEventCategories() []EventCategory {
	return []EventCategory{
		EventCategoryMeeting,
		EventCategoryTask,
		EventCategoryMessage,
		EventCategoryDeployment,
	}
}

// IsValid checks if the event category is valid
func (c EventCategory) IsValid() bool {
	switch c {
	case EventCategoryMeeting,
		EventCategoryTask,
		EventCategoryMessage,
		EventCategoryDeployment:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event category
func (c EventCategory) String() string {
	return string(c)
}

// ParseEventCategory parses a string into an EventCategory
func ParseEventCategory(s string) (EventCategory, error) {
	c := EventCategory(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid event category: %s", s)
	}
	return c, nil
}
