// Package fcm implements notify.Transport on Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/roach88/medibox/internal/notify"
)

// maxMulticast is the FCM limit on tokens per multicast request.
const maxMulticast = 500

// Client is the subset of *messaging.Client the transport uses.
type Client interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Transport sends notifications through FCM.
type Transport struct {
	client Client
}

var _ notify.Transport = (*Transport)(nil)

// New creates a Transport authenticated with the service account key at
// credentialsFile. An empty path falls back to application default
// credentials.
func New(ctx context.Context, credentialsFile string) (*Transport, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing messaging client.
func NewWithClient(client Client) *Transport {
	return &Transport{client: client}
}

func (t *Transport) Send(ctx context.Context, token string, msg notify.Message) error {
	m := message(msg)
	m.Token = token
	if _, err := t.client.Send(ctx, m); err != nil {
		return classify(err)
	}
	return nil
}

func (t *Transport) SendMulticast(ctx context.Context, tokens []string, msg notify.Message) ([]notify.Result, error) {
	results := make([]notify.Result, 0, len(tokens))
	for start := 0; start < len(tokens); start += maxMulticast {
		end := min(start+maxMulticast, len(tokens))
		batch := tokens[start:end]

		resp, err := t.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Data:         msg.Data,
			Notification: notification(msg),
		})
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Responses) != len(batch) {
			return nil, fmt.Errorf("fcm multicast: %d responses for %d tokens", len(resp.Responses), len(batch))
		}
		for i, r := range resp.Responses {
			res := notify.Result{Token: batch[i]}
			if !r.Success {
				res.Err = classify(r.Error)
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (t *Transport) SendToTopic(ctx context.Context, topic string, msg notify.Message) error {
	m := message(msg)
	m.Topic = topic
	if _, err := t.client.Send(ctx, m); err != nil {
		return classify(err)
	}
	return nil
}

func message(msg notify.Message) *messaging.Message {
	return &messaging.Message{
		Data:         msg.Data,
		Notification: notification(msg),
	}
}

func notification(msg notify.Message) *messaging.Notification {
	if msg.Title == "" && msg.Body == "" {
		return nil
	}
	return &messaging.Notification{Title: msg.Title, Body: msg.Body}
}

// failure is the FCM error class a send failed with.
type failure int

const (
	failureOther failure = iota
	failureUnregistered
	failureInvalidArgument
	failureSenderIDMismatch
	failureQuota
	failureUnavailable
)

func failureOf(err error) failure {
	switch {
	case messaging.IsUnregistered(err):
		return failureUnregistered
	case messaging.IsInvalidArgument(err):
		return failureInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return failureSenderIDMismatch
	case messaging.IsQuotaExceeded(err):
		return failureQuota
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return failureUnavailable
	default:
		return failureOther
	}
}

// code maps a failure class onto a notify code. Only an unregistered token
// is permanent: FCM also reports INVALID_ARGUMENT for bad payloads and
// SENDER_ID_MISMATCH for project misconfiguration, and neither says the
// token itself is dead.
func (f failure) code() notify.Code {
	switch f {
	case failureUnregistered:
		return notify.CodeNotRegistered
	case failureQuota:
		return notify.CodeRateLimited
	case failureUnavailable:
		return notify.CodeUnavailable
	default:
		return notify.CodeUnknown
	}
}

// classify maps an FCM error onto a notify error.
func classify(err error) error {
	if err == nil {
		return &notify.SendError{Code: notify.CodeUnknown}
	}
	return &notify.SendError{Code: failureOf(err).code(), Err: err}
}
