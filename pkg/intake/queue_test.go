package intake

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfiller/pkg/config"
	"fulfiller/pkg/convo"
	"fulfiller/pkg/market"
	"fulfiller/pkg/testkit"
)

const testSellerID = int64(500)

// recordingStarter finishes each conversation immediately so drains advance.
type recordingStarter struct {
	mu      sync.Mutex
	started []market.Order
	stars   []int
}

func (s *recordingStarter) StartConversation(_ context.Context, order market.Order, stars int) *convo.Conversation {
	s.mu.Lock()
	s.started = append(s.started, order)
	s.stars = append(s.stars, stars)
	s.mu.Unlock()

	conv := convo.NewConversation(order.Key(), order.ID, stars)
	conv.Finish()
	return conv
}

func (s *recordingStarter) startedOrders() []market.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Order, len(s.started))
	copy(out, s.started)
	return out
}

func loadIntakeStore(t *testing.T) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)
	require.NoError(t, config.Load(filepath.Join(t.TempDir(), "store.json")))
	require.NoError(t, config.UpdateLot("lot-50", 50))
	require.NoError(t, config.UpdateLot("lot-100", 100))
}

func fastSettings() config.Settings {
	s := config.DefaultSettings()
	s.SettleDelayMs = 1
	return s
}

func openOrder(id string, buyerID int64, lotID string, quantity int) market.Order {
	return market.Order{
		ID:       id,
		ChatID:   buyerID * 10,
		BuyerID:  buyerID,
		SellerID: testSellerID,
		LotID:    lotID,
		Quantity: quantity,
		Status:   market.StatusOpen,
	}
}

func TestEnqueueAcceptsValidOrder(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-50", 1)
	source := testkit.NewFakeOrderSource(order)
	messenger := testkit.NewFakeMessenger()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, messenger, testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	started := starter.startedOrders()
	require.Len(t, started, 1)
	assert.Equal(t, "A1", started[0].ID)
	assert.Equal(t, []int{50}, starter.stars)
	assert.Equal(t, 0, q.QueuedBuyers())
	testkit.AssertNothingSent(t, messenger)
}

func TestSameBuyerOrdersProcessedInOrder(t *testing.T) {
	loadIntakeStore(t)

	first := openOrder("A1", 9, "lot-50", 1)
	second := openOrder("A2", 9, "lot-100", 1)
	source := testkit.NewFakeOrderSource(first, second)
	starter := &recordingStarter{}
	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, fastSettings(), nil)

	ctx := context.Background()
	q.Enqueue(ctx, first)
	q.Enqueue(ctx, second)
	q.Wait()

	started := starter.startedOrders()
	require.Len(t, started, 2)
	assert.Equal(t, "A1", started[0].ID)
	assert.Equal(t, "A2", started[1].ID)
	assert.Equal(t, []int{50, 100}, starter.stars)
}

func TestSecondOrderWaitsForFirstConversation(t *testing.T) {
	loadIntakeStore(t)

	first := openOrder("A1", 9, "lot-50", 1)
	second := openOrder("A2", 9, "lot-100", 1)
	source := testkit.NewFakeOrderSource(first, second)

	// Hold the first conversation open until released.
	var mu sync.Mutex
	var convs []*convo.Conversation
	starter := starterFunc(func(_ context.Context, order market.Order, stars int) *convo.Conversation {
		conv := convo.NewConversation(order.Key(), order.ID, stars)
		mu.Lock()
		convs = append(convs, conv)
		mu.Unlock()
		return conv
	})

	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, fastSettings(), nil)

	ctx := context.Background()
	q.Enqueue(ctx, first)
	q.Enqueue(ctx, second)

	testkit.Eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(convs) == 1
	}, "first conversation started")

	// Second order must stay queued while the first conversation is live.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Len(t, convs, 1)
	first1 := convs[0]
	mu.Unlock()

	first1.Finish()
	testkit.Eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(convs) == 2
	}, "second conversation started after first finished")

	mu.Lock()
	convs[1].Finish()
	mu.Unlock()
	q.Wait()
}

func TestUnknownLotDroppedSilently(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-unmapped", 1)
	source := testkit.NewFakeOrderSource(order)
	messenger := testkit.NewFakeMessenger()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, messenger, testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
	testkit.AssertNothingSent(t, messenger)
}

func TestMultiUnitOrderRejectedWithMessage(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-50", 3)
	source := testkit.NewFakeOrderSource(order)
	messenger := testkit.NewFakeMessenger()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, messenger, testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
	testkit.AssertSentContains(t, messenger, "3 units")
	testkit.AssertSentContains(t, messenger, "150 stars")
	testkit.AssertSentCount(t, messenger, 1)
}

func TestClosedOrderDropped(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-50", 1)
	order.Status = market.StatusRefunded
	source := testkit.NewFakeOrderSource(order)
	messenger := testkit.NewFakeMessenger()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, messenger, testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
	testkit.AssertNothingSent(t, messenger)
}

func TestForeignSellerOrderDropped(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-50", 1)
	order.SellerID = testSellerID + 1
	source := testkit.NewFakeOrderSource(order)
	starter := &recordingStarter{}
	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
}

func TestRefetchFailureDropsOrder(t *testing.T) {
	loadIntakeStore(t)

	// Order observed in the event but absent from the source.
	order := openOrder("GONE", 9, "lot-50", 1)
	source := testkit.NewFakeOrderSource()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
}

func TestDisabledStoreIgnoresOrders(t *testing.T) {
	loadIntakeStore(t)
	require.NoError(t, config.SetEnabled(false))

	order := openOrder("A1", 9, "lot-50", 1)
	source := testkit.NewFakeOrderSource(order)
	messenger := testkit.NewFakeMessenger()
	starter := &recordingStarter{}
	q := NewQueue(source, starter, messenger, testSellerID, fastSettings(), nil)

	q.Enqueue(context.Background(), order)
	q.Wait()

	assert.Empty(t, starter.startedOrders())
	testkit.AssertNothingSent(t, messenger)
}

func TestIndependentBuyersDrainConcurrently(t *testing.T) {
	loadIntakeStore(t)

	a := openOrder("A1", 9, "lot-50", 1)
	b := openOrder("B1", 10, "lot-100", 1)
	source := testkit.NewFakeOrderSource(a, b)
	starter := &recordingStarter{}
	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, fastSettings(), nil)

	ctx := context.Background()
	q.Enqueue(ctx, a)
	q.Enqueue(ctx, b)
	q.Wait()

	started := starter.startedOrders()
	require.Len(t, started, 2)
	ids := map[string]bool{started[0].ID: true, started[1].ID: true}
	assert.True(t, ids["A1"] && ids["B1"])
}

func TestCancelledContextStopsDrain(t *testing.T) {
	loadIntakeStore(t)

	order := openOrder("A1", 9, "lot-50", 1)
	source := testkit.NewFakeOrderSource(order)
	starter := &recordingStarter{}

	settings := config.DefaultSettings()
	settings.SettleDelayMs = 5000
	q := NewQueue(source, starter, testkit.NewFakeMessenger(), testSellerID, settings, nil)

	ctx, cancel := context.WithCancel(context.Background())
	q.Enqueue(ctx, order)
	cancel()
	q.Wait()

	assert.Empty(t, starter.startedOrders())
}

// starterFunc adapts a func to ConversationStarter.
type starterFunc func(ctx context.Context, order market.Order, stars int) *convo.Conversation

func (f starterFunc) StartConversation(ctx context.Context, order market.Order, stars int) *convo.Conversation {
	return f(ctx, order, stars)
}
