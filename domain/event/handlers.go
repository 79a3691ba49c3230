package event

// Handler Each kind of technical event has his own handler
// Based on the Chain of responsibility pattern
type Handler interface {
	Handle(event TechnicalEvent)
}
