package testkit

import (
	"context"
	"errors"
	"testing"

	"fulfiller/pkg/market"
)

func TestFakeMessengerRecords(t *testing.T) {
	m := NewFakeMessenger()
	if err := m.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := m.SendMessage(context.Background(), 42, "world"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	AssertSentCount(t, m, 2)
	AssertSentContains(t, m, "hello")
	AssertNotSent(t, m, "goodbye")

	m.Reset()
	AssertNothingSent(t, m)
}

func TestFakeOrderSourceLookup(t *testing.T) {
	src := NewFakeOrderSource(market.Order{ID: "A1", BuyerID: 9, Status: market.StatusOpen})

	order, err := src.GetOrder(context.Background(), "A1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.BuyerID != 9 {
		t.Errorf("Expected buyer 9, got %d", order.BuyerID)
	}

	if _, err := src.GetOrder(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown order")
	}

	src.SetStatus("A1", market.StatusClosed)
	order, _ = src.GetOrder(context.Background(), "A1")
	if order.Status.Active() {
		t.Error("Expected A1 to be inactive after SetStatus")
	}

	if src.Calls() != 3 {
		t.Errorf("Expected 3 calls, got %d", src.Calls())
	}
}

func TestFakeGiftClientScriptedFailure(t *testing.T) {
	client := NewFakeGiftClient()
	client.FailSends = map[int]error{1: errors.New("boom")}

	recipient, err := client.ResolveRecipient(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ResolveRecipient: %v", err)
	}

	if err := client.SendGift(context.Background(), recipient, "tok-0"); err != nil {
		t.Errorf("First send should succeed, got %v", err)
	}
	if err := client.SendGift(context.Background(), recipient, "tok-1"); err == nil {
		t.Error("Second send should fail")
	}

	AssertGiftCount(t, client, 2)
}
