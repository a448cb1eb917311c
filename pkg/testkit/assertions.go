// Package testkit provides fakes and assertion helpers for fulfillment
// pipeline tests.
package testkit

import (
	"strings"
	"testing"
	"time"
)

// AssertSentContains verifies that some captured message contains the
// expected fragment.
func AssertSentContains(t *testing.T, m *FakeMessenger, fragment string) {
	t.Helper()
	for _, text := range m.Texts() {
		if strings.Contains(text, fragment) {
			return
		}
	}
	t.Errorf("Expected a sent message containing %q, got %v", fragment, m.Texts())
}

// AssertNotSent verifies that no captured message contains the fragment.
func AssertNotSent(t *testing.T, m *FakeMessenger, fragment string) {
	t.Helper()
	for _, text := range m.Texts() {
		if strings.Contains(text, fragment) {
			t.Errorf("Expected no sent message containing %q, found %q", fragment, text)
			return
		}
	}
}

// AssertNothingSent verifies that zero messages were sent.
func AssertNothingSent(t *testing.T, m *FakeMessenger) {
	t.Helper()
	if texts := m.Texts(); len(texts) != 0 {
		t.Errorf("Expected no messages sent, got %d: %v", len(texts), texts)
	}
}

// AssertSentCount verifies the number of captured messages.
func AssertSentCount(t *testing.T, m *FakeMessenger, expected int) {
	t.Helper()
	if texts := m.Texts(); len(texts) != expected {
		t.Errorf("Expected %d messages sent, got %d: %v", expected, len(texts), texts)
	}
}

// AssertGiftCount verifies the number of SendGift calls.
func AssertGiftCount(t *testing.T, c *FakeGiftClient, expected int) {
	t.Helper()
	if sends := c.Sends(); len(sends) != expected {
		t.Errorf("Expected %d gifts sent, got %d", expected, len(sends))
	}
}

// Eventually polls cond every 5ms until it is true or the timeout elapses.
// Helps tests that wait for background drains without sleeping fixed amounts.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v: %s", timeout, msg)
}
