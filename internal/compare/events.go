package compare

// EventType names a transcription lifecycle event.
type EventType string

const (
	EventStarted EventType = "transcription_started"
	EventDone    EventType = "transcription_done"
	EventFailed  EventType = "transcription_failed"
)

// Event is emitted to observers as models run.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id"`
	ModelID   string    `json:"model"`
	Label     string    `json:"label"`
	Text      string    `json:"text,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// OnEvent registers fn to receive every event. fn is called synchronously
// from the goroutine running the model and must not block.
func (e *Engine) OnEvent(fn func(Event)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) emit(ev Event) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, fn := range e.observers {
		fn(ev)
	}
}
