// Package market defines the marketplace data model and the narrow contracts
// the fulfillment core requires from its external collaborators: the order
// source and the buyer-facing messenger.
package market

import (
	"context"
	"fmt"
)

// OrderStatus enumerates the externally-owned lifecycle states of an order.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusRefunded OrderStatus = "refunded"
)

// Active reports whether the order can still be fulfilled.
func (s OrderStatus) Active() bool {
	return s == StatusOpen
}

// Order is a marketplace purchase as observed from the order source.
// Orders are created externally and are read-only to this service.
type Order struct {
	ID       string      `json:"id"`
	ChatID   int64       `json:"chat_id"`
	BuyerID  int64       `json:"buyer_id"`
	SellerID int64       `json:"seller_id"`
	LotID    string      `json:"lot_id"`
	Quantity int         `json:"quantity"`
	Status   OrderStatus `json:"status"`
}

// Key returns the (chat, buyer) conversation key for this order.
func (o Order) Key() ConversationKey {
	return ConversationKey{ChatID: o.ChatID, BuyerID: o.BuyerID}
}

// ConversationKey identifies one buyer dialogue. At most one conversation
// record exists per key at a time.
type ConversationKey struct {
	ChatID  int64 `json:"chat_id"`
	BuyerID int64 `json:"buyer_id"`
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%d/%d", k.ChatID, k.BuyerID)
}

// Message is an incoming chat message from a buyer.
type Message struct {
	ChatID   int64  `json:"chat_id"`
	AuthorID int64  `json:"author_id"`
	Text     string `json:"text"`
}

// Key returns the (chat, author) conversation key for this message.
func (m Message) Key() ConversationKey {
	return ConversationKey{ChatID: m.ChatID, BuyerID: m.AuthorID}
}

// OrderSource is the marketplace collaborator. GetOrder re-fetches an order
// by id so intake never acts on stale event data.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// Messenger sends chat messages back to buyers.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
