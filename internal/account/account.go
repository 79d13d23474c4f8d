// Package account declares what the orchestrator needs from a backing
// account, the live connection that owns a contact list in the chat
// ecosystem. The protocol client implementing it lives outside this module
// (or behind the websocket bridge in internal/handlers).
package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTransport is wrapped by implementations when the underlying connection
// fails. Callers report it; nothing in the core retries.
var ErrTransport = errors.New("backing account transport error")

// Account is one connected identity with a finite contact list.
// Implementations must be safe for concurrent use: the load balancer may query
// capacity while the protocol layer is sending on the same account.
type Account interface {
	// Handle is an opaque, stable identifier for the connection.
	Handle() uuid.UUID
	// RemainingContactCapacity is the number of contact list slots still free.
	RemainingContactCapacity(ctx context.Context) (int, error)
	// SendText delivers text to a participant on this account's contact list.
	SendText(ctx context.Context, participantID int64, text string) error
	// RequestContact sends a contact request to an external identity.
	RequestContact(ctx context.Context, externalID int64) error
}
