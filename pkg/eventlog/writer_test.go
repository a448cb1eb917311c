package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"fulfiller/pkg/market"
)

func testOrder(id string) market.Order {
	return market.Order{
		ID:       id,
		ChatID:   100,
		BuyerID:  9,
		SellerID: 500,
		LotID:    "lot-50",
		Quantity: 1,
		Status:   market.StatusOpen,
	}
}

func TestNewWriter(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	currentFile := writer.CurrentLogFile()
	if currentFile == "" {
		t.Error("No current log file set")
	}
	if _, err := os.Stat(currentFile); os.IsNotExist(err) {
		t.Error("Current log file does not exist")
	}
}

func TestWriteEvent(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	event := market.NewOrderEvent(testOrder("A1"))
	if err := writer.WriteEvent(event); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}

	data, err := os.ReadFile(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("Log file is empty")
	}
	if data[len(data)-1] != '\n' {
		t.Error("Log line should end with newline")
	}
}

func TestWriteAndReadBackEvents(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	events := []*market.Event{
		market.NewOrderEvent(testOrder("A1")),
		market.NewMessageEvent(market.Message{ChatID: 100, AuthorID: 9, Text: "@alice"}),
		market.NewDeliveryEvent(map[string]string{"order_id": "A1", "stars": "50"}),
	}
	for i, event := range events {
		if err := writer.WriteEvent(event); err != nil {
			t.Fatalf("Failed to write event %d: %v", i, err)
		}
	}

	read, err := ReadEvents(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(read) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(read))
	}
	for i, event := range read {
		if event.Type != events[i].Type {
			t.Errorf("Event %d type mismatch: expected %s, got %s", i, events[i].Type, event.Type)
		}
		if event.ID != events[i].ID {
			t.Errorf("Event %d ID mismatch: expected %s, got %s", i, events[i].ID, event.ID)
		}
	}

	if read[0].Order == nil || read[0].Order.ID != "A1" {
		t.Errorf("Expected order A1 in first event, got %+v", read[0].Order)
	}
	if read[1].Message == nil || read[1].Message.Text != "@alice" {
		t.Errorf("Expected message text in second event, got %+v", read[1].Message)
	}
	if read[2].Summary["stars"] != "50" {
		t.Errorf("Expected stars summary in third event, got %v", read[2].Summary)
	}
}

func TestDailyRotation(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	if err := writer.WriteEvent(market.NewOrderEvent(testOrder("A1"))); err != nil {
		t.Fatalf("Failed to write first event: %v", err)
	}
	initialFile := writer.CurrentLogFile()

	// Force a rotation to a fixed past date.
	writer.mu.Lock()
	err = writer.rotate("2025-12-25")
	writer.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	newFile := writer.CurrentLogFile()
	if initialFile == newFile {
		t.Errorf("Expected file to rotate from %s, but still using same file", initialFile)
	}

	original, err := ReadEvents(initialFile)
	if err != nil {
		t.Fatalf("Failed to read original file: %v", err)
	}
	if len(original) != 1 {
		t.Errorf("Expected 1 event in original file, got %d", len(original))
	}
}

func TestReadEventsWithoutTrailingNewline(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "events-2025-01-01.jsonl")

	first, _ := market.NewOrderEvent(testOrder("A1")).ToJSON()
	second, _ := market.NewOrderEvent(testOrder("A2")).ToJSON()

	data := append(first, '\n')
	data = append(data, second...)
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	events, err := ReadEvents(logFile)
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(events))
	}
}

func TestReadEmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "empty.jsonl")
	if err := os.WriteFile(logFile, nil, 0644); err != nil {
		t.Fatalf("Failed to create empty file: %v", err)
	}

	events, err := ReadEvents(logFile)
	if err != nil {
		t.Fatalf("Failed to read empty file: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected 0 events from empty file, got %d", len(events))
	}
}

func TestListLogFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testFiles := []string{
		"events-2025-01-01.jsonl",
		"events-2025-01-02.jsonl",
		"events-2025-01-03.jsonl",
		"other-file.txt", // Should be ignored
	}
	for _, filename := range testFiles {
		if err := os.WriteFile(filepath.Join(tmpDir, filename), nil, 0644); err != nil {
			t.Fatalf("Failed to create test file %s: %v", filename, err)
		}
	}

	logFiles, err := ListLogFiles(tmpDir)
	if err != nil {
		t.Fatalf("Failed to list log files: %v", err)
	}
	if len(logFiles) != 3 {
		t.Errorf("Expected 3 log files, got %d", len(logFiles))
	}
}

func TestWriterClose(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	event := market.NewOrderEvent(testOrder("A1"))
	if err := writer.WriteEvent(event); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	if writer.currentFile != nil {
		t.Error("Expected current file to be nil after close")
	}

	// Writing after close reopens the day's file.
	if err := writer.WriteEvent(event); err != nil {
		t.Fatalf("Writing after close should reopen the log, got error: %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			event := market.NewDeliveryEvent(map[string]string{"worker": "test"})
			if writeErr := writer.WriteEvent(event); writeErr != nil {
				t.Errorf("Failed to write event %d: %v", id, writeErr)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	events, err := ReadEvents(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(events) != 10 {
		t.Errorf("Expected 10 events, got %d", len(events))
	}
}
