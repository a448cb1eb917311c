// Package delivery dispatches decomposed gift batches through the external
// delivery client and reports outcomes back to the buyer chat.
package delivery

import (
	"context"
	"errors"
)

// Sentinel errors for the failure modes that abort a delivery before any gift
// is attempted. None of these are retried: the conversation ends and the
// buyer needs a fresh order to try again.
var (
	// ErrClientNotReady means the delivery client has no usable session.
	ErrClientNotReady = errors.New("delivery client is not connected")
	// ErrRecipientNotFound means the identifier resolved to nobody.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrResolution means recipient lookup failed in transport, distinct
	// from a clean not-found.
	ErrResolution = errors.New("recipient resolution failed")
)

// Recipient is the resolved external identity gifts are sent to.
type Recipient struct {
	ID       string
	Username string
}

// Client is the external gift-delivery collaborator.
//
// ResolveRecipient returns an error wrapping ErrRecipientNotFound when the
// identifier matches no account; any other error is treated as a transport
// failure. SendGift errors are per-unit and non-fatal to a batch.
type Client interface {
	Ready() bool
	ResolveRecipient(ctx context.Context, identifier string) (Recipient, error)
	SendGift(ctx context.Context, recipient Recipient, token string) error
}
