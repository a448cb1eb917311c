// Package replay re-runs a recorded event journal through the full pipeline
// with offline collaborators: orders come from the journal itself, outgoing
// chat and gift sends are logged instead of transmitted.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfiller/internal/kernel"
	"fulfiller/pkg/config"
	"fulfiller/pkg/delivery"
	"fulfiller/pkg/eventlog"
	"fulfiller/pkg/logx"
	"fulfiller/pkg/market"
)

// scriptSource serves orders captured in the journal. Order state is whatever
// the journal recorded at observation time.
type scriptSource struct {
	mu     sync.Mutex
	orders map[string]market.Order
}

func newScriptSource(events []*market.Event) *scriptSource {
	s := &scriptSource{orders: make(map[string]market.Order)}
	for _, event := range events {
		if event.Type == market.EventTypeOrder && event.Order != nil {
			s.orders[event.Order.ID] = *event.Order
		}
	}
	return s
}

func (s *scriptSource) GetOrder(_ context.Context, orderID string) (market.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return market.Order{}, fmt.Errorf("order %s not in replay script", orderID)
	}
	return order, nil
}

// logMessenger prints outgoing chat messages instead of sending them.
type logMessenger struct {
	logger *logx.Logger
}

func (m *logMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	m.logger.Info("→ chat %d: %s", chatID, text)
	return nil
}

// logClient accepts every gift and logs it.
type logClient struct {
	logger *logx.Logger
}

func (c *logClient) Ready() bool { return true }

func (c *logClient) ResolveRecipient(_ context.Context, identifier string) (delivery.Recipient, error) {
	return delivery.Recipient{ID: "1", Username: identifier}, nil
}

func (c *logClient) SendGift(_ context.Context, recipient delivery.Recipient, token string) error {
	c.logger.Info("🎁 gift token %s → %s", token, recipient.Username)
	return nil
}

// Runner replays one journal file through a fresh kernel.
type Runner struct {
	settings config.Settings
	logger   *logx.Logger
}

// NewRunner creates a replay runner. The settings' store, database, and
// journal paths should point at scratch locations.
func NewRunner(settings config.Settings) *Runner {
	return &Runner{
		settings: settings,
		logger:   logx.NewLogger("replay"),
	}
}

// Run reads the journal, builds the offline pipeline, and dispatches every
// order and message event in recorded sequence. Returns the number of events
// dispatched.
func (r *Runner) Run(ctx context.Context, eventsFile string) (int, error) {
	events, err := eventlog.ReadEvents(eventsFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read replay input: %w", err)
	}
	if len(events) == 0 {
		return 0, fmt.Errorf("replay input %s contains no events", eventsFile)
	}

	k, err := kernel.NewKernel(ctx, kernel.Options{
		Settings:  r.settings,
		Client:    &logClient{logger: logx.NewLogger("replay-gifts")},
		Source:    newScriptSource(events),
		Messenger: &logMessenger{logger: logx.NewLogger("replay-chat")},
		// Seller check disabled: the journal is trusted input.
		SellerID: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to build replay kernel: %w", err)
	}
	if err := k.Start(); err != nil {
		return 0, err
	}
	defer func() { _ = k.Stop() }()

	dispatched := 0
	for _, event := range events {
		if event.Type == market.EventTypeDelivery {
			// Recorded output, not input.
			continue
		}
		select {
		case <-ctx.Done():
			return dispatched, ctx.Err()
		default:
		}
		k.Dispatch(event)
		dispatched++

		// Intake opens conversations asynchronously; the journal's message
		// events assume the dialogue already exists. Hold the sequence until
		// this order's conversation is live (or intake rejected the order).
		if event.Type == market.EventTypeOrder && event.Order != nil {
			r.awaitConversation(ctx, k, event.Order.Key())
		}
	}

	// Let per-buyer drains run to completion before reporting.
	k.Intake.Wait()

	stats, err := k.Stats()
	if err != nil {
		return dispatched, fmt.Errorf("failed to read replay stats: %w", err)
	}
	r.logger.Info("Replay complete: %d events, %d deliveries, %d stars, %d failures",
		dispatched, stats.TotalDeliveries, stats.TotalStars, stats.TotalFailures)
	return dispatched, nil
}

// awaitConversation polls until a conversation exists for the key, the
// buyer's intake queue has emptied (the order was rejected), or the deadline
// passes.
func (r *Runner) awaitConversation(ctx context.Context, k *kernel.Kernel, key market.ConversationKey) {
	deadline := time.After(r.settings.SettleDelay() + 2*time.Second)
	for {
		if _, ok := k.Store.Get(key); ok {
			return
		}
		if k.Intake.QueuedBuyers() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			r.logger.Warn("Conversation %s never opened during replay", key)
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}
