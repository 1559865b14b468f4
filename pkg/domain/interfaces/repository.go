package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Event() EventRepository
	Briefing() BriefingRepository

	Close() error
}
