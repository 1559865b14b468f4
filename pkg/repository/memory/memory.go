package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/orbit/pkg/domain/interfaces"
)

// Sentinel errors of the in-memory backend
var (
	ErrNotFound    = goerr.New("not found")
	ErrWriteFailed = goerr.New("store write failed")
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	event    *eventRepository
	briefing *briefingRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		event:    newEventRepository(),
		briefing: newBriefingRepository(),
	}
}

func (m *Memory) Event() interfaces.EventRepository {
	return m.event
}

func (m *Memory) Briefing() interfaces.BriefingRepository {
	return m.briefing
}

func (m *Memory) Close() error {
	return nil
}
