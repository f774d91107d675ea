package session

type EventType string

const (
	EventStage    EventType = "stage"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

type Event struct {
	Type           EventType `json:"type"`
	SessionID      string    `json:"sessionId,omitempty"`
	Stage          Stage     `json:"analysisStage"`
	Progress       int       `json:"progress"`
	TotalItems     int       `json:"totalItems"`
	ProcessedItems int       `json:"processedItems"`
	LeakedCount    int       `json:"leakedCount,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Subscribe registers a listener. Delivery never blocks the session: events that do
// not fit in the buffer are dropped. The returned func unregisters and closes the channel.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
