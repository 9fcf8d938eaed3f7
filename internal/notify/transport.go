package notify

import (
	"context"
	"log/slog"
)

// Result is the outcome of delivering to one token. Err is nil on success.
type Result struct {
	Token string
	Err   error
}

// Transport sends messages to devices and topics.
//
// SendMulticast returns one Result per token in input order. A non-nil error
// means the whole call failed and no token was attempted.
type Transport interface {
	Send(ctx context.Context, token string, msg Message) error
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Result, error)
	SendToTopic(ctx context.Context, topic string, msg Message) error
}

// LogTransport logs every message and reports success. It stands in for a
// real transport when no credentials are configured.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, token string, msg Message) error {
	slog.Info("push (log only)", "token", token, "action", msg.Action(), "title", msg.Title)
	return nil
}

func (t LogTransport) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	results := make([]Result, len(tokens))
	for i, tok := range tokens {
		results[i] = Result{Token: tok, Err: t.Send(ctx, tok, msg)}
	}
	return results, nil
}

func (LogTransport) SendToTopic(ctx context.Context, topic string, msg Message) error {
	slog.Info("push (log only)", "topic", topic, "action", msg.Action(), "title", msg.Title)
	return nil
}
