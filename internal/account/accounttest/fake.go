// Package accounttest provides an in-memory account.Account for tests.
package accounttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/KilianB/LeagueMultiChat/internal/account"
	"github.com/google/uuid"
)

// Message is one text recorded by a Fake.
type Message struct {
	To   int64
	Text string
}

// Fake records every action instead of talking to the ecosystem.
type Fake struct {
	handle uuid.UUID

	mu          sync.Mutex
	capacity    int
	capacityErr error
	sendErr     error
	contactErr  error
	sent        []Message
	contacts    []int64
}

func New(capacity int) *Fake {
	return &Fake{handle: uuid.New(), capacity: capacity}
}

func (f *Fake) Handle() uuid.UUID { return f.handle }

func (f *Fake) RemainingContactCapacity(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacityErr != nil {
		return 0, f.capacityErr
	}
	return f.capacity, nil
}

func (f *Fake) SendText(ctx context.Context, participantID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, Message{To: participantID, Text: text})
	return nil
}

func (f *Fake) RequestContact(ctx context.Context, externalID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contactErr != nil {
		return f.contactErr
	}
	f.contacts = append(f.contacts, externalID)
	f.capacity--
	return nil
}

// FailCapacity makes capacity queries fail with a transport error.
func (f *Fake) FailCapacity() {
	f.mu.Lock()
	f.capacityErr = fmt.Errorf("capacity query: %w", account.ErrTransport)
	f.mu.Unlock()
}

// FailSend makes SendText fail with a transport error.
func (f *Fake) FailSend() {
	f.mu.Lock()
	f.sendErr = fmt.Errorf("send: %w", account.ErrTransport)
	f.mu.Unlock()
}

// FailContact makes RequestContact fail with a transport error.
func (f *Fake) FailContact() {
	f.mu.Lock()
	f.contactErr = fmt.Errorf("contact request: %w", account.ErrTransport)
	f.mu.Unlock()
}

// Sent returns a copy of every message sent so far.
func (f *Fake) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// SentTo returns the texts sent to one participant.
func (f *Fake) SentTo(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.To == id {
			out = append(out, m.Text)
		}
	}
	return out
}

// LastTo returns the most recent text sent to id, or "".
func (f *Fake) LastTo(id int64) string {
	texts := f.SentTo(id)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Contacts returns the external ids contact requests were sent to.
func (f *Fake) Contacts() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.contacts...)
}

// Reset drops recorded messages.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}
