package chat

import (
	"sync"

	"sellerchat/internal/models"
)

// Stream is the ordered message buffer of the selected room. History seeds
// it with Replace and live messages are appended in arrival order. Nothing
// is reordered or de-duplicated: a message delivered twice shows twice.
//
// Only the Manager mutates a Stream; readers may call from any goroutine.
type Stream struct {
	records []models.ChatMessage
	mux     sync.RWMutex
}

func NewStream() *Stream {
	return &Stream{}
}

func (s *Stream) Append(msg models.ChatMessage) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records = append(s.records, msg)
}

// Replace installs msgs as the new baseline, dropping everything buffered so far.
func (s *Stream) Replace(msgs []models.ChatMessage) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records = append(make([]models.ChatMessage, 0, len(msgs)), msgs...)
}

func (s *Stream) Reset() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records = nil
}

func (s *Stream) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.records)
}

// Messages returns a copy of the buffer in display order.
func (s *Stream) Messages() []models.ChatMessage {
	s.mux.RLock()
	defer s.mux.RUnlock()
	result := make([]models.ChatMessage, len(s.records))
	copy(result, s.records)
	return result
}

// Last returns up to count most recent messages, oldest first.
func (s *Stream) Last(count int) []models.ChatMessage {
	s.mux.RLock()
	defer s.mux.RUnlock()

	if count <= 0 {
		return []models.ChatMessage{}
	}
	if count > len(s.records) {
		count = len(s.records)
	}
	result := make([]models.ChatMessage, count)
	copy(result, s.records[len(s.records)-count:])
	return result
}

// Display classifies every buffered message for me.
func (s *Stream) Display(me models.Identity, layout string) []models.DisplayMessage {
	msgs := s.Messages()
	result := make([]models.DisplayMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = Classify(msg, me, layout)
	}
	return result
}
