package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"fulfiller/pkg/config"
	"fulfiller/pkg/gifts"
	"fulfiller/pkg/logx"
	"fulfiller/pkg/market"
	"fulfiller/pkg/metrics"
)

// Request carries the copied-out values a confirmed conversation hands to the
// worker. The conversation record is already gone by the time Deliver runs,
// so the worker never touches conversation state.
type Request struct {
	Recipient string // Buyer-supplied identifier, confirmed in chat
	Stars     int    // Total stars to deliver
	Order     market.Order
}

// Report summarizes one delivery run. Partial failure is a reported outcome,
// not an error: the report is returned to the caller either way.
type Report struct {
	OrderID      string              `json:"order_id"`
	Recipient    string              `json:"recipient"`
	Stars        int                 `json:"stars"`
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
	Counts       gifts.Decomposition `json:"counts"`
	Duration     time.Duration       `json:"duration"`
}

// History records completed deliveries durably. Implemented by the
// persistence layer; nil disables recording.
type History interface {
	RecordDelivery(ctx context.Context, report Report) error
}

// Worker sends decomposed gift batches one unit at a time with a fixed pacing
// delay between units. Safe for concurrent use: each Deliver call works on
// its own request and a value snapshot of the gift pools.
type Worker struct {
	client      Client
	messenger   market.Messenger
	pacing      time.Duration
	orderURLTpl string
	history     History
	journal     market.Journal
	recorder    *metrics.Recorder
	logger      *logx.Logger
}

// NewWorker creates a delivery worker. history, journal, and recorder may be
// nil.
func NewWorker(client Client, messenger market.Messenger, settings config.Settings, history History, journal market.Journal, recorder *metrics.Recorder) *Worker {
	return &Worker{
		client:      client,
		messenger:   messenger,
		pacing:      settings.PacingDelay(),
		orderURLTpl: settings.OrderURLTemplate,
		history:     history,
		journal:     journal,
		recorder:    recorder,
		logger:      logx.NewLogger("delivery"),
	}
}

// Deliver runs one confirmed delivery end to end: readiness check, recipient
// resolution, decomposition, the paced unit loop, and the buyer-facing
// summary. The four pre-loop failures abort the whole attempt and are
// messaged to the buyer; per-unit failures are counted and the loop
// continues.
func (w *Worker) Deliver(ctx context.Context, req Request) (Report, error) {
	started := time.Now()
	report := Report{
		OrderID:   req.Order.ID,
		Recipient: req.Recipient,
		Stars:     req.Stars,
	}
	chatID := req.Order.ChatID

	snap, err := config.GetSnapshot()
	if err != nil {
		w.abort(ctx, chatID, "❌ Delivery is not configured")
		return report, err
	}

	if !w.client.Ready() {
		w.logger.Error("Order %s: delivery client not ready", req.Order.ID)
		w.abort(ctx, chatID, "❌ Telegram client is not connected")
		return report, ErrClientNotReady
	}

	recipient, err := w.client.ResolveRecipient(ctx, req.Recipient)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			w.logger.Warn("Order %s: recipient %q not found", req.Order.ID, req.Recipient)
			w.abort(ctx, chatID, fmt.Sprintf("❌ User %s not found", req.Recipient))
			return report, err
		}
		w.logger.Error("Order %s: resolving %q: %v", req.Order.ID, req.Recipient, err)
		w.abort(ctx, chatID, fmt.Sprintf("❌ Could not look up %s, please contact the seller", req.Recipient))
		return report, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	decomposition, err := gifts.Solve(req.Stars, snap.Denominations())
	if err != nil {
		w.logger.Error("Order %s: decomposing %d stars: %v", req.Order.ID, req.Stars, err)
		w.abort(ctx, chatID, fmt.Sprintf("❌ Could not split %d stars into gifts", req.Stars))
		return report, err
	}
	report.Counts = decomposition

	// Unit loop. Tokens are drawn uniformly at random from the
	// denomination's pool; a failed send is logged, counted, and skipped.
	// The pacing pause is the only suspension point and holds no locks.
	for _, denom := range snap.Denominations() {
		pool := snap.GiftPools[denom]
		for i := 0; i < decomposition[denom]; i++ {
			token := pool[rand.Intn(len(pool))]
			if err := w.client.SendGift(ctx, recipient, token); err != nil {
				w.logger.Error("Order %s: gift of %d stars (token %s) to %s failed: %v",
					req.Order.ID, denom, token, req.Recipient, err)
				report.FailureCount++
				if w.recorder != nil {
					w.recorder.IncGift(denom, false)
				}
			} else {
				report.SuccessCount++
				if w.recorder != nil {
					w.recorder.IncGift(denom, true)
				}
			}

			select {
			case <-ctx.Done():
				report.Duration = time.Since(started)
				return report, ctx.Err()
			case <-time.After(w.pacing):
			}
		}
	}
	report.Duration = time.Since(started)

	w.sendSummary(ctx, req, report)
	w.record(ctx, report)
	return report, nil
}

// sendSummary emits the human-readable batch report, the failure notice when
// anything failed, and the review request when nothing did.
func (w *Worker) sendSummary(ctx context.Context, req Request, report Report) {
	summary := fmt.Sprintf("✅ Sent: %d stars\n\n%s", req.Stars, report.Counts.Summary())
	if report.FailureCount > 0 {
		summary += fmt.Sprintf("\n\n❌ Failed: %d", report.FailureCount)
	}
	w.send(ctx, req.Order.ChatID, summary)

	if report.FailureCount == 0 {
		review := "✅ Stars delivered to your account!\n\n❤️ Please confirm the order and leave a review."
		if w.orderURLTpl != "" && req.Order.ID != "" {
			review += fmt.Sprintf("\n✨ "+w.orderURLTpl, req.Order.ID)
		}
		w.send(ctx, req.Order.ChatID, review)
	}
}

// record persists the report and journals the outcome. Failures here are
// logged only: the gifts are already out.
func (w *Worker) record(ctx context.Context, report Report) {
	outcome := metrics.DeliveryCompleted
	if report.FailureCount > 0 {
		outcome = metrics.DeliveryPartial
	}
	if w.recorder != nil {
		w.recorder.ObserveDelivery(outcome, report.Duration)
	}

	if w.history != nil {
		if err := w.history.RecordDelivery(ctx, report); err != nil {
			w.logger.Error("Order %s: recording delivery history: %v", report.OrderID, err)
		}
	}
	if w.journal != nil {
		event := market.NewDeliveryEvent(map[string]string{
			"order_id":  report.OrderID,
			"recipient": report.Recipient,
			"stars":     strconv.Itoa(report.Stars),
			"success":   strconv.Itoa(report.SuccessCount),
			"failure":   strconv.Itoa(report.FailureCount),
			"outcome":   outcome,
		})
		if err := w.journal.WriteEvent(event); err != nil {
			w.logger.Error("Order %s: journaling delivery: %v", report.OrderID, err)
		}
	}
}

// abort reports a pre-loop failure to the buyer and counts the aborted run.
func (w *Worker) abort(ctx context.Context, chatID int64, text string) {
	if w.recorder != nil {
		w.recorder.ObserveDelivery(metrics.DeliveryAborted, 0)
	}
	w.send(ctx, chatID, text)
}

func (w *Worker) send(ctx context.Context, chatID int64, text string) {
	if err := w.messenger.SendMessage(ctx, chatID, text); err != nil {
		w.logger.Error("Sending to chat %d: %v", chatID, err)
	}
}
