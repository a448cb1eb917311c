package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfiller/pkg/delivery"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DatabaseOperations provides methods for delivery history queries and writes.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates a new DatabaseOperations instance.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// InsertDelivery stores one delivery record.
func (ops *DatabaseOperations) InsertDelivery(record *DeliveryRecord) error {
	query := `
		INSERT INTO deliveries (
			id, order_id, recipient, stars, success_count, failure_count,
			counts_json, duration_ms, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := ops.db.Exec(query,
		record.ID, record.OrderID, record.Recipient, record.Stars,
		record.SuccessCount, record.FailureCount, record.CountsJSON,
		record.DurationMs, record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery %s: %w", record.ID, err)
	}
	return nil
}

// GetDelivery returns one delivery record by ID.
func (ops *DatabaseOperations) GetDelivery(id string) (*DeliveryRecord, error) {
	query := `
		SELECT id, order_id, recipient, stars, success_count, failure_count,
		       counts_json, duration_ms, completed_at
		FROM deliveries WHERE id = ?
	`

	record := &DeliveryRecord{}
	err := ops.db.QueryRow(query, id).Scan(
		&record.ID, &record.OrderID, &record.Recipient, &record.Stars,
		&record.SuccessCount, &record.FailureCount, &record.CountsJSON,
		&record.DurationMs, &record.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery %s: %w", id, err)
	}
	return record, nil
}

// GetDeliveriesByOrder returns all delivery records for an order, oldest first.
// An order normally has at most one, but partial reruns can produce more.
func (ops *DatabaseOperations) GetDeliveriesByOrder(orderID string) ([]*DeliveryRecord, error) {
	query := `
		SELECT id, order_id, recipient, stars, success_count, failure_count,
		       counts_json, duration_ms, completed_at
		FROM deliveries WHERE order_id = ?
		ORDER BY completed_at ASC
	`

	rows, err := ops.db.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries for order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanDeliveries(rows)
}

// ListRecentDeliveries returns up to limit records, newest first.
func (ops *DatabaseOperations) ListRecentDeliveries(limit int) ([]*DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, order_id, recipient, stars, success_count, failure_count,
		       counts_json, duration_ms, completed_at
		FROM deliveries
		ORDER BY completed_at DESC
		LIMIT ?
	`

	rows, err := ops.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDeliveries(rows)
}

// GetStats aggregates the deliveries table.
func (ops *DatabaseOperations) GetStats() (*DeliveryStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(stars), 0),
		       COALESCE(SUM(success_count), 0),
		       COALESCE(SUM(failure_count), 0)
		FROM deliveries
	`

	stats := &DeliveryStats{}
	err := ops.db.QueryRow(query).Scan(
		&stats.TotalDeliveries, &stats.TotalStars,
		&stats.TotalGiftsSent, &stats.TotalFailures,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delivery stats: %w", err)
	}
	return stats, nil
}

func scanDeliveries(rows *sql.Rows) ([]*DeliveryRecord, error) {
	var records []*DeliveryRecord
	for rows.Next() {
		record := &DeliveryRecord{}
		err := rows.Scan(
			&record.ID, &record.OrderID, &record.Recipient, &record.Stars,
			&record.SuccessCount, &record.FailureCount, &record.CountsJSON,
			&record.DurationMs, &record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery records: %w", err)
	}
	return records, nil
}

// HistoryRecorder adapts the deliveries table to the delivery worker's
// History contract.
type HistoryRecorder struct {
	ops *DatabaseOperations
}

// NewHistoryRecorder creates a recorder writing through the given operations.
func NewHistoryRecorder(ops *DatabaseOperations) *HistoryRecorder {
	return &HistoryRecorder{ops: ops}
}

// RecordDelivery implements delivery.History.
func (h *HistoryRecorder) RecordDelivery(_ context.Context, report delivery.Report) error {
	countsJSON, err := EncodeCounts(report.Counts)
	if err != nil {
		return err
	}

	return h.ops.InsertDelivery(&DeliveryRecord{
		ID:           GenerateDeliveryID(),
		OrderID:      report.OrderID,
		Recipient:    report.Recipient,
		Stars:        report.Stars,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		CountsJSON:   countsJSON,
		DurationMs:   report.Duration.Milliseconds(),
		CompletedAt:  time.Now().UTC(),
	})
}
