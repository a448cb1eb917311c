package convo

import (
	"context"
	"fmt"
	"strings"

	"fulfiller/pkg/delivery"
	"fulfiller/pkg/logx"
	"fulfiller/pkg/market"
	"fulfiller/pkg/metrics"
)

// Deliverer runs one confirmed delivery. Implemented by *delivery.Worker;
// tests inject fakes.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) (delivery.Report, error)
}

// Router drives conversation transitions for incoming chat messages and
// invokes the delivery worker on confirmation.
//
// Transitions for one key never interleave (per-conversation mutex); the
// delivery run happens with the record already removed, so it holds no
// conversation lock and other keys are unaffected by its pacing waits.
type Router struct {
	store     Store
	source    market.OrderSource
	messenger market.Messenger
	deliverer Deliverer
	recorder  *metrics.Recorder
	logger    *logx.Logger
}

// NewRouter creates a conversation router. recorder may be nil.
func NewRouter(store Store, source market.OrderSource, messenger market.Messenger, deliverer Deliverer, recorder *metrics.Recorder) *Router {
	return &Router{
		store:     store,
		source:    source,
		messenger: messenger,
		deliverer: deliverer,
		recorder:  recorder,
		logger:    logx.NewLogger("convo"),
	}
}

// StartConversation creates the record for a validated order and asks the
// buyer for a delivery identifier. Called by intake only. If a record already
// exists for the key it is displaced and finished; intake's per-buyer
// serialization makes that a should-not-happen guard, not a code path.
func (r *Router) StartConversation(ctx context.Context, order market.Order, stars int) *Conversation {
	conv := NewConversation(order.Key(), order.ID, stars)
	if displaced := r.store.Put(conv); displaced != nil {
		r.logger.Warn("Conversation %s displaced by order %s (was order %s)",
			conv.Key, order.ID, displaced.OrderID)
		displaced.Finish()
	}
	r.publishGauge()

	r.logger.Info("💬 Conversation %s started for order %s (%d stars)", conv.Key, order.ID, stars)
	r.send(ctx, order.ChatID, fmt.Sprintf(
		"✨ Thanks for your order of %d stars!\n\nSend your Telegram username:\n• @username\n• username\n• user ID",
		stars))
	return conv
}

// HandleMessage routes one incoming chat message. Messages for keys with no
// record are ignored. Safe to call concurrently; calls for the same key are
// serialized internally. The conversation lock is released before a confirmed
// delivery runs, so messages arriving mid-delivery fall through to the
// no-record path instead of blocking on the paced unit loop.
func (r *Router) HandleMessage(ctx context.Context, msg market.Message) {
	key := msg.Key()
	conv, ok := r.store.Get(key)
	if !ok {
		r.logger.Debug("No conversation for %s, ignoring message", key)
		return
	}

	conv.mu.Lock()
	req, confirmed := r.advance(ctx, conv, msg)
	conv.mu.Unlock()

	if confirmed {
		r.runDelivery(ctx, conv, req)
	}
}

// advance applies one message to the conversation under its lock. When the
// buyer confirmed, the record is already removed and the delivery request is
// returned for the caller to run lock-free.
func (r *Router) advance(ctx context.Context, conv *Conversation, msg market.Message) (delivery.Request, bool) {
	key := conv.Key

	// The record may have been removed or displaced while we waited.
	if current, ok := r.store.Get(key); !ok || current != conv {
		r.logger.Debug("Conversation %s resolved concurrently, ignoring message", key)
		return delivery.Request{}, false
	}

	// Opportunistic closure poll: a closed or refunded order cancels the
	// dialogue silently.
	if r.orderGone(ctx, conv.OrderID) {
		r.store.Remove(key)
		conv.Finish()
		r.publishGauge()
		r.logger.Info("Conversation %s discarded: order %s no longer open", key, conv.OrderID)
		return delivery.Request{}, false
	}

	switch phase := conv.Phase.(type) {
	case AwaitingRecipient:
		r.handleRecipient(ctx, conv, msg)
	case AwaitingConfirmation:
		return r.handleConfirmation(ctx, conv, phase, msg)
	default:
		r.logger.Error("Conversation %s in unknown phase %T", key, conv.Phase)
	}
	return delivery.Request{}, false
}

func (r *Router) handleRecipient(ctx context.Context, conv *Conversation, msg market.Message) {
	identifier := strings.TrimSpace(msg.Text)
	if identifier == "" {
		r.send(ctx, msg.ChatID, "❌ Please send a username")
		return
	}

	conv.transition(AwaitingConfirmation{Recipient: identifier})
	r.logger.Debug("Conversation %s: candidate %q, awaiting confirmation", conv.Key, identifier)
	r.sendConfirmPrompt(ctx, msg.ChatID, identifier, conv.Stars)
}

func (r *Router) handleConfirmation(ctx context.Context, conv *Conversation, phase AwaitingConfirmation, msg market.Message) (delivery.Request, bool) {
	switch {
	case isConfirm(msg.Text):
		// Remove before delivering: further chat text for this key is
		// ignored while gifts go out, and delivery happens exactly once.
		r.store.Remove(conv.Key)
		r.publishGauge()

		r.send(ctx, msg.ChatID, fmt.Sprintf("🚀 Sending %d stars...", conv.Stars))
		r.logger.Info("📤 Order %s: delivering %d stars to %q", conv.OrderID, conv.Stars, phase.Recipient)

		return delivery.Request{
			Recipient: phase.Recipient,
			Stars:     conv.Stars,
			Order: market.Order{
				ID:      conv.OrderID,
				ChatID:  conv.Key.ChatID,
				BuyerID: conv.Key.BuyerID,
			},
		}, true

	case isCancel(msg.Text):
		conv.transition(AwaitingRecipient{})
		r.logger.Debug("Conversation %s: candidate rejected, awaiting new identifier", conv.Key)
		r.send(ctx, msg.ChatID, "🔄 Send a new username")

	default:
		replacement := strings.TrimSpace(msg.Text)
		if replacement == "" {
			r.sendConfirmPrompt(ctx, msg.ChatID, phase.Recipient, conv.Stars)
			return delivery.Request{}, false
		}
		conv.transition(AwaitingConfirmation{Recipient: replacement})
		r.logger.Debug("Conversation %s: candidate replaced with %q", conv.Key, replacement)
		r.sendConfirmPrompt(ctx, msg.ChatID, replacement, conv.Stars)
	}
	return delivery.Request{}, false
}

// runDelivery executes a confirmed request and finishes the record. The
// conversation lock is not held here: the record is already gone and the
// paced unit loop must not stall handlers for this key.
func (r *Router) runDelivery(ctx context.Context, conv *Conversation, req delivery.Request) {
	if _, err := r.deliverer.Deliver(ctx, req); err != nil {
		// The worker already reported the failure to the buyer; the
		// conversation still terminates — retry needs a fresh order.
		r.logger.Error("Order %s: delivery failed: %v", conv.OrderID, err)
	} else {
		r.logger.Info("✅ Order %s completed", conv.OrderID)
	}
	conv.Finish()
}

// orderGone re-fetches the order and reports whether it left the open state.
// Lookup failures are treated as "still open": a flaky order source must not
// cancel live conversations.
func (r *Router) orderGone(ctx context.Context, orderID string) bool {
	order, err := r.source.GetOrder(ctx, orderID)
	if err != nil {
		r.logger.Debug("Closure poll for order %s failed: %v", orderID, err)
		return false
	}
	return !order.Status.Active()
}

func (r *Router) sendConfirmPrompt(ctx context.Context, chatID int64, identifier string, stars int) {
	r.send(ctx, chatID, fmt.Sprintf(
		"✓ Please check:\n• Username: %s\n• Stars: %d\n\nSend «+» to confirm or a new username",
		identifier, stars))
}

func (r *Router) publishGauge() {
	if r.recorder != nil {
		r.recorder.SetActiveConversations(r.store.Len())
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if err := r.messenger.SendMessage(ctx, chatID, text); err != nil {
		r.logger.Error("Sending to chat %d: %v", chatID, err)
	}
}
