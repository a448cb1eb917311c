// Package convo tracks per-buyer conversation state and routes incoming chat
// messages through the identifier → confirmation → delivery dialogue.
package convo

import (
	"strings"
	"sync"
	"time"

	"fulfiller/pkg/market"
)

// Confirm and cancel vocabularies, matched case-insensitively against the
// whole trimmed message. The sets are fixed: buyers on the marketplace use
// both Russian and English.
var (
	confirmResponses = map[string]bool{"+": true, "да": true, "yes": true, "верно": true, "confirm": true}
	cancelResponses  = map[string]bool{"-": true, "нет": true, "no": true}
)

func isConfirm(text string) bool {
	return confirmResponses[strings.ToLower(strings.TrimSpace(text))]
}

func isCancel(text string) bool {
	return cancelResponses[strings.ToLower(strings.TrimSpace(text))]
}

// Phase is the sealed set of dialogue phases a stored conversation can be in.
// Each variant carries exactly the fields that phase needs. Delivery and
// completion are not phases: a confirmed conversation is removed from the
// store before its gifts go out, so stale chat text cannot re-trigger it.
type Phase interface {
	phase()
	Name() string
}

// AwaitingRecipient waits for the buyer to supply a delivery identifier.
type AwaitingRecipient struct{}

func (AwaitingRecipient) phase()       {}
func (AwaitingRecipient) Name() string { return "AWAITING_RECIPIENT" }

// AwaitingConfirmation waits for the buyer to confirm the echoed identifier.
// The candidate may be replaced any number of times before confirmation.
type AwaitingConfirmation struct {
	Recipient string
}

func (AwaitingConfirmation) phase()       {}
func (AwaitingConfirmation) Name() string { return "AWAITING_CONFIRMATION" }

// Conversation is one active buyer dialogue, keyed by (chat, buyer). A record
// exists only while its order is unresolved; absence means no pending
// interaction and chat text for the key is ignored.
type Conversation struct {
	Key       market.ConversationKey
	OrderID   string
	Stars     int // Total stars to deliver on confirmation
	Phase     Phase
	UpdatedAt time.Time

	// mu serializes transitions for this key. Different keys proceed fully
	// in parallel; the store's own mutex only guards map access.
	mu       sync.Mutex
	doneOnce sync.Once
	done     chan struct{}
}

// NewConversation creates a record in the AwaitingRecipient phase.
func NewConversation(key market.ConversationKey, orderID string, stars int) *Conversation {
	return &Conversation{
		Key:       key,
		OrderID:   orderID,
		Stars:     stars,
		Phase:     AwaitingRecipient{},
		UpdatedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// Done is closed when the conversation reaches a terminal outcome: delivery
// finished, the order was externally closed, or the record was displaced.
// Intake waits on it to serialize a buyer's orders.
func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

// Finish marks the conversation terminal and closes Done. Idempotent.
func (c *Conversation) Finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Conversation) transition(next Phase) {
	c.Phase = next
	c.UpdatedAt = time.Now().UTC()
}
