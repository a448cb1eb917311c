package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fulfiller/pkg/gifts"
)

// DeliveryRecord is one completed (or partially completed) delivery run as
// stored in the deliveries table.
type DeliveryRecord struct {
	CompletedAt  time.Time `json:"completed_at"`
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	Recipient    string    `json:"recipient"`
	CountsJSON   string    `json:"counts_json"` // JSON denomination → count
	DurationMs   int64     `json:"duration_ms"`
	Stars        int       `json:"stars"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
}

// Clean reports whether every gift in the run was sent successfully.
func (r *DeliveryRecord) Clean() bool {
	return r.FailureCount == 0
}

// Decomposition decodes the stored denomination counts.
func (r *DeliveryRecord) Decomposition() (gifts.Decomposition, error) {
	var counts map[int]int
	if err := json.Unmarshal([]byte(r.CountsJSON), &counts); err != nil {
		return nil, fmt.Errorf("failed to decode counts for delivery %s: %w", r.ID, err)
	}
	return gifts.Decomposition(counts), nil
}

// EncodeCounts serializes denomination counts for storage.
func EncodeCounts(counts gifts.Decomposition) (string, error) {
	data, err := json.Marshal(map[int]int(counts))
	if err != nil {
		return "", fmt.Errorf("failed to encode denomination counts: %w", err)
	}
	return string(data), nil
}

// GenerateDeliveryID generates a new UUID for a delivery record.
func GenerateDeliveryID() string {
	return uuid.New().String()
}

// DeliveryStats aggregates the deliveries table for status reporting.
type DeliveryStats struct {
	TotalDeliveries int   `json:"total_deliveries"`
	TotalStars      int64 `json:"total_stars"`
	TotalGiftsSent  int64 `json:"total_gifts_sent"`
	TotalFailures   int64 `json:"total_failures"`
}
