package mail

import (
	"context"
	"log/slog"
)

// Mailer delivers the small set of transactional messages the service sends.
// Implementations must be safe for concurrent use; delivery failures are the
// caller's to handle (typically logged, never surfaced to the requester).
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// LogMailer is the development Mailer: it logs the message instead of
// sending it, so flows can be exercised without an SMTP relay.
type LogMailer struct {
	Log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{Log: log}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	m.Log.InfoContext(ctx, "email verification message",
		"to", to,
		"token", token,
	)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	m.Log.InfoContext(ctx, "password reset message",
		"to", to,
		"token", token,
	)
	return nil
}
