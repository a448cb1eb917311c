// Package intake validates newly observed orders and starts buyer
// conversations, one order at a time per buyer.
package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfiller/pkg/config"
	"fulfiller/pkg/convo"
	"fulfiller/pkg/logx"
	"fulfiller/pkg/market"
	"fulfiller/pkg/metrics"
)

// ConversationStarter opens the dialogue for a validated order. Implemented
// by *convo.Router.
type ConversationStarter interface {
	StartConversation(ctx context.Context, order market.Order, stars int) *convo.Conversation
}

// Queue holds one FIFO of pending orders per buyer. The first enqueue for a
// buyer spawns a drain goroutine; the goroutine exits and the queue entry is
// deleted once the buyer's FIFO is empty. Check-and-spawn is atomic under the
// queue-map mutex, so at most one drain task exists per buyer at any instant.
//
// Within one buyer, orders are processed strictly in first-observed order,
// and the next order waits until the previous order's conversation reaches a
// terminal outcome. Across buyers, drains are fully independent.
type Queue struct {
	source   market.OrderSource
	starter  ConversationStarter
	sender   market.Messenger
	recorder *metrics.Recorder
	logger   *logx.Logger
	sellerID int64
	settle   time.Duration

	mu     sync.Mutex
	queues map[int64][]pendingOrder
	active map[int64]bool
	wg     sync.WaitGroup
}

type pendingOrder struct {
	orderID string
	chatID  int64
}

// NewQueue creates the intake queue. sellerID guards against orders that
// belong to another seller account; recorder may be nil.
func NewQueue(source market.OrderSource, starter ConversationStarter, sender market.Messenger, sellerID int64, settings config.Settings, recorder *metrics.Recorder) *Queue {
	return &Queue{
		source:   source,
		starter:  starter,
		sender:   sender,
		recorder: recorder,
		logger:   logx.NewLogger("intake"),
		sellerID: sellerID,
		settle:   settings.SettleDelay(),
		queues:   make(map[int64][]pendingOrder),
		active:   make(map[int64]bool),
	}
}

// Enqueue appends an observed order to its buyer's FIFO and spawns the drain
// goroutine if none is running for that buyer. ctx bounds the lifetime of the
// spawned drain.
func (q *Queue) Enqueue(ctx context.Context, order market.Order) {
	q.mu.Lock()
	q.queues[order.BuyerID] = append(q.queues[order.BuyerID], pendingOrder{
		orderID: order.ID,
		chatID:  order.ChatID,
	})
	spawn := !q.active[order.BuyerID]
	if spawn {
		q.active[order.BuyerID] = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.logger.Info("📦 Order %s queued for buyer %d", order.ID, order.BuyerID)
	if spawn {
		go q.drain(ctx, order.BuyerID)
	}
}

// Wait blocks until every drain goroutine has exited. Used on shutdown and
// in tests; callers cancel ctx first.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// QueuedBuyers reports how many buyers currently have pending queues.
func (q *Queue) QueuedBuyers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}

// drain processes one buyer's FIFO to exhaustion, then removes the queue
// entry and exits. A later enqueue recreates both.
func (q *Queue) drain(ctx context.Context, buyerID int64) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		pending := q.queues[buyerID]
		if len(pending) == 0 {
			delete(q.queues, buyerID)
			delete(q.active, buyerID)
			q.mu.Unlock()
			q.logger.Debug("Buyer %d queue drained", buyerID)
			return
		}
		entry := pending[0]
		q.queues[buyerID] = pending[1:]
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
		}
		q.process(ctx, buyerID, entry)
	}
}

// process runs intake for one queue entry: settle delay, re-fetch,
// validation, conversation start, then wait for that conversation to finish
// so the buyer's next order cannot overlap it.
func (q *Queue) process(ctx context.Context, buyerID int64, entry pendingOrder) {
	// Settle delay: let the order source's own propagation catch up before
	// re-reading. Suspends only this buyer's drain.
	select {
	case <-ctx.Done():
		return
	case <-time.After(q.settle):
	}

	order, err := q.source.GetOrder(ctx, entry.orderID)
	if err != nil {
		q.logger.Warn("Order %s dropped: re-fetch failed: %v", entry.orderID, err)
		q.incOrder(metrics.OrderDropped)
		return
	}
	if q.sellerID != 0 && order.SellerID != q.sellerID {
		q.logger.Warn("Order %s dropped: owned by seller %d, not us", order.ID, order.SellerID)
		q.incOrder(metrics.OrderDropped)
		return
	}
	if !order.Status.Active() {
		q.logger.Info("Order %s dropped: status %s", order.ID, order.Status)
		q.incOrder(metrics.OrderDropped)
		return
	}

	snap, err := config.GetSnapshot()
	if err != nil {
		q.logger.Error("Order %s dropped: %v", order.ID, err)
		q.incOrder(metrics.OrderDropped)
		return
	}
	if !snap.Enabled {
		q.logger.Info("Order %s ignored: fulfillment disabled", order.ID)
		q.incOrder(metrics.OrderIgnoredDisabled)
		return
	}

	starsPerUnit, ok := snap.StarsForLot(order.LotID)
	if !ok {
		// Not our lot. Stay silent in chat: the seller may fulfill it by hand.
		q.logger.Warn("Order %s ignored: lot %q not in mapping", order.ID, order.LotID)
		q.incOrder(metrics.OrderUnknownLot)
		return
	}

	totalStars := starsPerUnit * order.Quantity
	if order.Quantity != 1 {
		q.logger.Warn("Order %s rejected: quantity %d", order.ID, order.Quantity)
		q.incOrder(metrics.OrderBadQuantity)
		q.send(ctx, order.ChatID, fmt.Sprintf(
			"❌ You ordered %d units (%d stars). Please order one unit at a time!",
			order.Quantity, totalStars))
		return
	}

	q.incOrder(metrics.OrderAccepted)
	conv := q.starter.StartConversation(ctx, order, totalStars)

	// Queuing discipline: the buyer's next order waits here until this
	// conversation delivers, is cancelled by closure, or is displaced.
	select {
	case <-ctx.Done():
	case <-conv.Done():
		q.logger.Debug("Order %s conversation finished, buyer %d queue continues", order.ID, buyerID)
	}
}

func (q *Queue) incOrder(disposition string) {
	if q.recorder != nil {
		q.recorder.IncOrder(disposition)
	}
}

func (q *Queue) send(ctx context.Context, chatID int64, text string) {
	if err := q.sender.SendMessage(ctx, chatID, text); err != nil {
		q.logger.Error("Sending to chat %d: %v", chatID, err)
	}
}
