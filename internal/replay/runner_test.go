package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfiller/pkg/config"
	"fulfiller/pkg/market"
)

func replaySettings(t *testing.T) config.Settings {
	t.Helper()
	dir := t.TempDir()

	settings := config.DefaultSettings()
	settings.PacingDelayMs = 1
	settings.SettleDelayMs = 1
	settings.StorePath = filepath.Join(dir, "store.json")
	settings.DBPath = filepath.Join(dir, "history.db")
	settings.EventLogDir = filepath.Join(dir, "events")
	return settings
}

func writeScript(t *testing.T, events []*market.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.jsonl")

	var data []byte
	for _, event := range events {
		line, err := event.ToJSON()
		require.NoError(t, err)
		data = append(data, line...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunReplaysFullDialogue(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	settings := replaySettings(t)
	// The lot store is created fresh under the scratch path; seed the lot
	// mapping before the kernel loads it.
	require.NoError(t, config.Load(settings.StorePath))
	require.NoError(t, config.UpdateLot("lot-50", 50))
	config.Reset()

	order := market.Order{
		ID:       "A1",
		ChatID:   100,
		BuyerID:  9,
		SellerID: 500,
		LotID:    "lot-50",
		Quantity: 1,
		Status:   market.StatusOpen,
	}
	script := writeScript(t, []*market.Event{
		market.NewOrderEvent(order),
		market.NewMessageEvent(market.Message{ChatID: 100, AuthorID: 9, Text: "@alice"}),
		market.NewMessageEvent(market.Message{ChatID: 100, AuthorID: 9, Text: "+"}),
	})

	runner := NewRunner(settings)
	dispatched, err := runner.Run(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, 3, dispatched)
}

func TestRunRejectsEmptyScript(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	runner := NewRunner(replaySettings(t))
	_, err := runner.Run(context.Background(), path)
	assert.Error(t, err)
}

func TestRunSkipsDeliveryEvents(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	settings := replaySettings(t)
	require.NoError(t, config.Load(settings.StorePath))
	require.NoError(t, config.UpdateLot("lot-50", 50))
	config.Reset()

	script := writeScript(t, []*market.Event{
		market.NewDeliveryEvent(map[string]string{"order_id": "A1"}),
		market.NewMessageEvent(market.Message{ChatID: 100, AuthorID: 9, Text: "hello"}),
	})

	runner := NewRunner(settings)
	dispatched, err := runner.Run(context.Background(), script)
	require.NoError(t, err)
	// Only the message event reaches the pipeline.
	assert.Equal(t, 1, dispatched)
}
