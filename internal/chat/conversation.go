package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation holds the message history for one chat session.
type Conversation struct {
	ID string

	mu        sync.Mutex
	messages  []Message
	maxTurns  int
	updatedAt time.Time
}

// Append records a turn. When the history exceeds the turn cap the oldest
// messages are dropped so the model always sees the most recent context.
func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: role, Content: content})
	if c.maxTurns > 0 && len(c.messages) > c.maxTurns {
		c.messages = c.messages[len(c.messages)-c.maxTurns:]
	}
	c.updatedAt = time.Now()
}

// History returns a copy of the message history, oldest first.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of stored messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// ConversationStore is a thread-safe in-memory conversation registry with
// TTL eviction.
type ConversationStore struct {
	mu       sync.Mutex
	convs    map[string]*Conversation
	ttl      time.Duration
	maxTurns int
}

func NewConversationStore(ttl time.Duration, maxTurns int) *ConversationStore {
	return &ConversationStore{
		convs:    make(map[string]*Conversation),
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

// Create registers a new empty conversation and returns it.
func (s *ConversationStore) Create() *Conversation {
	conv := &Conversation{
		ID:        uuid.NewString(),
		maxTurns:  s.maxTurns,
		updatedAt: time.Now(),
	}
	s.mu.Lock()
	s.convs[conv.ID] = conv
	s.mu.Unlock()
	return conv
}

// Get returns the conversation with the given ID, or nil.
func (s *ConversationStore) Get(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[id]
}

// GetOrCreate returns the conversation with the given ID, creating a fresh
// one when the ID is unknown or empty.
func (s *ConversationStore) GetOrCreate(id string) *Conversation {
	if id != "" {
		if conv := s.Get(id); conv != nil {
			return conv
		}
	}
	return s.Create()
}

// Delete removes a conversation. It reports whether the ID existed.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return false
	}
	delete(s.convs, id)
	return true
}

// Cleanup removes conversations idle for longer than the TTL.
func (s *ConversationStore) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.convs {
		conv.mu.Lock()
		idle := now.Sub(conv.updatedAt)
		conv.mu.Unlock()
		if idle > s.ttl {
			delete(s.convs, id)
		}
	}
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
