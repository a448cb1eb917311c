package testkit

import (
	"context"
	"fmt"
	"sync"

	"fulfiller/pkg/delivery"
	"fulfiller/pkg/market"
)

// FakeMessenger records every outgoing chat message. Safe for concurrent use.
type FakeMessenger struct {
	mu   sync.Mutex
	sent []SentMessage

	// FailWith, when set, is returned by every SendMessage call.
	FailWith error
}

// SentMessage is one captured SendMessage call.
type SentMessage struct {
	ChatID int64
	Text   string
}

// NewFakeMessenger creates an empty recording messenger.
func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{}
}

// SendMessage implements market.Messenger.
func (m *FakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// Sent returns a copy of all captured messages in send order.
func (m *FakeMessenger) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Texts returns just the message bodies in send order.
func (m *FakeMessenger) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, len(m.sent))
	for i, s := range m.sent {
		texts[i] = s.Text
	}
	return texts
}

// Reset drops all captured messages.
func (m *FakeMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// FakeOrderSource serves orders from an in-memory map.
type FakeOrderSource struct {
	mu     sync.Mutex
	orders map[string]market.Order
	calls  int

	// FailWith, when set, is returned by every GetOrder call.
	FailWith error
}

// NewFakeOrderSource creates a source pre-loaded with the given orders.
func NewFakeOrderSource(orders ...market.Order) *FakeOrderSource {
	s := &FakeOrderSource{orders: make(map[string]market.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

// GetOrder implements market.OrderSource.
func (s *FakeOrderSource) GetOrder(_ context.Context, orderID string) (market.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.FailWith != nil {
		return market.Order{}, s.FailWith
	}
	order, ok := s.orders[orderID]
	if !ok {
		return market.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return order, nil
}

// SetOrder adds or replaces an order.
func (s *FakeOrderSource) SetOrder(order market.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// SetStatus rewrites the status of a stored order.
func (s *FakeOrderSource) SetStatus(orderID string, status market.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[orderID]
	order.Status = status
	s.orders[orderID] = order
}

// Calls reports how many GetOrder calls were made.
func (s *FakeOrderSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeGiftClient is a scriptable delivery.Client. Each SendGift call is
// recorded; failures are injected per call index.
type FakeGiftClient struct {
	mu    sync.Mutex
	sends []GiftSend

	// NotReady makes Ready report false.
	NotReady bool
	// ResolveErr, when set, is returned by ResolveRecipient.
	ResolveErr error
	// FailSends holds zero-based indexes of SendGift calls that must fail.
	FailSends map[int]error
}

// GiftSend is one captured SendGift call.
type GiftSend struct {
	Recipient delivery.Recipient
	Token     string
}

// NewFakeGiftClient creates a client that resolves every identifier and
// accepts every gift.
func NewFakeGiftClient() *FakeGiftClient {
	return &FakeGiftClient{}
}

// Ready implements delivery.Client.
func (c *FakeGiftClient) Ready() bool {
	return !c.NotReady
}

// ResolveRecipient implements delivery.Client. The identifier becomes the
// username and a synthetic numeric ID.
func (c *FakeGiftClient) ResolveRecipient(_ context.Context, identifier string) (delivery.Recipient, error) {
	if c.ResolveErr != nil {
		return delivery.Recipient{}, c.ResolveErr
	}
	return delivery.Recipient{ID: "7000001", Username: identifier}, nil
}

// SendGift implements delivery.Client.
func (c *FakeGiftClient) SendGift(_ context.Context, recipient delivery.Recipient, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.sends)
	c.sends = append(c.sends, GiftSend{Recipient: recipient, Token: token})
	if err, ok := c.FailSends[idx]; ok {
		return err
	}
	return nil
}

// Sends returns a copy of all captured SendGift calls in order.
func (c *FakeGiftClient) Sends() []GiftSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]GiftSend, len(c.sends))
	copy(out, c.sends)
	return out
}

// FakeJournal records events written through it.
type FakeJournal struct {
	mu     sync.Mutex
	events []*market.Event
}

// NewFakeJournal creates an empty journal.
func NewFakeJournal() *FakeJournal {
	return &FakeJournal{}
}

// WriteEvent implements market.Journal.
func (j *FakeJournal) WriteEvent(event *market.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return nil
}

// Events returns a copy of all recorded events in write order.
func (j *FakeJournal) Events() []*market.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*market.Event, len(j.events))
	copy(out, j.events)
	return out
}
