package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfiller/pkg/market"
)

func TestMemoryStorePutGetRemove(t *testing.T) {
	store := NewMemoryStore()
	key := market.ConversationKey{ChatID: 1, BuyerID: 2}
	conv := NewConversation(key, "A1", 50)

	displaced := store.Put(conv)
	assert.Nil(t, displaced)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(key)
	require.True(t, ok)
	assert.Same(t, conv, got)

	removed, ok := store.Remove(key)
	require.True(t, ok)
	assert.Same(t, conv, removed)
	assert.Equal(t, 0, store.Len())

	_, ok = store.Get(key)
	assert.False(t, ok)
}

func TestMemoryStorePutReturnsDisplaced(t *testing.T) {
	store := NewMemoryStore()
	key := market.ConversationKey{ChatID: 1, BuyerID: 2}
	first := NewConversation(key, "A1", 50)
	second := NewConversation(key, "A2", 100)

	store.Put(first)
	displaced := store.Put(second)
	require.NotNil(t, displaced)
	assert.Same(t, first, displaced)

	got, _ := store.Get(key)
	assert.Same(t, second, got)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreRemoveDoesNotFinish(t *testing.T) {
	store := NewMemoryStore()
	key := market.ConversationKey{ChatID: 1, BuyerID: 2}
	conv := NewConversation(key, "A1", 50)
	store.Put(conv)

	store.Remove(key)
	select {
	case <-conv.Done():
		t.Fatal("Remove must not finish the conversation")
	default:
	}
}

func TestMemoryStoreRemoveMissing(t *testing.T) {
	store := NewMemoryStore()
	_, ok := store.Remove(market.ConversationKey{ChatID: 9, BuyerID: 9})
	assert.False(t, ok)
}

func TestConversationKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	a := NewConversation(market.ConversationKey{ChatID: 1, BuyerID: 2}, "A1", 50)
	b := NewConversation(market.ConversationKey{ChatID: 1, BuyerID: 3}, "B1", 100)

	store.Put(a)
	store.Put(b)
	assert.Equal(t, 2, store.Len())

	store.Remove(a.Key)
	_, ok := store.Get(b.Key)
	assert.True(t, ok)
}

func TestFinishIdempotent(t *testing.T) {
	conv := NewConversation(market.ConversationKey{ChatID: 1, BuyerID: 2}, "A1", 50)
	conv.Finish()
	conv.Finish()
	select {
	case <-conv.Done():
	default:
		t.Fatal("Done should be closed after Finish")
	}
}
