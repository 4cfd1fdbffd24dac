// Package memory keeps checkpoint notifications in process instead of sending
// them to Pub/Sub.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
)

// Message is one recorded publish. Data holds the JSON body Pub/Sub would
// have received.
type Message struct {
	ID           string
	Topic        string
	Data         []byte
	Notification checkpoint.Notification
}

// Publisher records checkpoint notifications per topic.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	err      error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every later Publish return err. A nil err restores normal
// behaviour.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish encodes payload the way the Pub/Sub publisher does and records it
// as a checkpoint notification.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}
	var note checkpoint.Notification
	if err := json.Unmarshal(data, &note); err != nil {
		return "", fmt.Errorf("decode notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	id := fmt.Sprintf("%s-%d", topic, len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data, Notification: note})
	return id, nil
}

// Messages returns a copy of every recorded publish in order.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Notifications returns the notifications published for stage, oldest first.
// An empty stage returns all of them.
func (p *Publisher) Notifications(stage string) []checkpoint.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []checkpoint.Notification
	for _, m := range p.messages {
		if stage == "" || m.Notification.Stage == stage {
			out = append(out, m.Notification)
		}
	}
	return out
}

// Latest returns the newest notification for stage.
func (p *Publisher) Latest(stage string) (checkpoint.Notification, bool) {
	notes := p.Notifications(stage)
	if len(notes) == 0 {
		return checkpoint.Notification{}, false
	}
	return notes[len(notes)-1], true
}
