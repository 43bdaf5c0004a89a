package gateways

import (
	"context"
	"sync"
	"time"
)

// SentMessage records one delivered notification.
type SentMessage struct {
	Subject string
	Body    string
	Rich    bool
}

// MemoryNotifier is an in-memory notification gateway for tests and local
// runs. Failure modes are switchable per method.
type MemoryNotifier struct {
	mu        sync.Mutex
	Messages  []SentMessage
	FailPlain bool
	FailRich  bool
}

// NewMemoryNotifier creates a recording notification gateway.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// SendPlain records a plain-text notification.
func (m *MemoryNotifier) SendPlain(ctx context.Context, subject, body string) bool {
	if m.FailPlain {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, SentMessage{Subject: subject, Body: body})
	return true
}

// SendRich records an HTML notification.
func (m *MemoryNotifier) SendRich(ctx context.Context, subject, htmlBody string) bool {
	if m.FailRich {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, SentMessage{Subject: subject, Body: htmlBody, Rich: true})
	return true
}

// Sent returns a copy of all recorded messages.
func (m *MemoryNotifier) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage{}, m.Messages...)
}

// BookedMeeting records one scheduled meeting.
type BookedMeeting struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// MemoryScheduler is an in-memory scheduling gateway for tests and local
// runs.
type MemoryScheduler struct {
	mu       sync.Mutex
	Meetings []BookedMeeting
	Fail     bool
}

// NewMemoryScheduler creates a recording scheduling gateway.
func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{}
}

// ScheduleEvent records a meeting.
func (m *MemoryScheduler) ScheduleEvent(ctx context.Context, title, description string, start, end time.Time) bool {
	if m.Fail {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Meetings = append(m.Meetings, BookedMeeting{Title: title, Description: description, Start: start, End: end})
	return true
}

// Booked returns a copy of all recorded meetings.
func (m *MemoryScheduler) Booked() []BookedMeeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BookedMeeting{}, m.Meetings...)
}
