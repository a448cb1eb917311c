package convo

import (
	"sync"

	"fulfiller/pkg/market"
)

// Store owns the (chat, buyer) → Conversation map. It is injected rather than
// held in a package global so tests and multiple runtimes get isolated state.
// Implementations must never expose the map in a partially-updated condition
// to concurrent readers.
type Store interface {
	// Get returns the active conversation for a key, if any.
	Get(key market.ConversationKey) (*Conversation, bool)
	// Put installs a conversation, displacing any existing record for the
	// key. The displaced record, if any, is returned so the caller can
	// finish it.
	Put(conv *Conversation) (displaced *Conversation)
	// Remove deletes the record for a key and returns it. Removal does not
	// finish the conversation: confirmed deliveries finish after the worker
	// returns, with the record already gone.
	Remove(key market.ConversationKey) (*Conversation, bool)
	// Len reports the number of active conversations.
	Len() int
}

// MemoryStore is the in-process Store. One coarse mutex guards the map; all
// operations are O(1) map accesses, so contention is negligible next to the
// chat round-trips around them.
type MemoryStore struct {
	mu    sync.Mutex
	convs map[market.ConversationKey]*Conversation
}

// NewMemoryStore creates an empty conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[market.ConversationKey]*Conversation),
	}
}

func (s *MemoryStore) Get(key market.ConversationKey) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[key]
	return conv, ok
}

func (s *MemoryStore) Put(conv *Conversation) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	displaced := s.convs[conv.Key]
	s.convs[conv.Key] = conv
	return displaced
}

func (s *MemoryStore) Remove(key market.ConversationKey) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[key]
	if ok {
		delete(s.convs, key)
	}
	return conv, ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
