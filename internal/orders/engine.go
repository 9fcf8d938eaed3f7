package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/router"
)

// DefaultTopic is the topic every pharmacy subscribes to for open orders.
const DefaultTopic = "medicineOrder"

// Tree is the store access the engine needs.
type Tree interface {
	Move(ctx context.Context, from, to string) (any, error)
}

// Notifier delivers order notifications.
type Notifier interface {
	Notify(ctx context.Context, r notify.Recipient, msg notify.Message) (notify.Report, error)
	Broadcast(ctx context.Context, topic string, msg notify.Message) (notify.Report, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopic overrides the broadcast topic for untargeted orders.
func WithTopic(topic string) Option {
	return func(e *Engine) {
		e.topic = topic
	}
}

// Engine applies order transitions.
type Engine struct {
	tree     Tree
	notifier Notifier
	topic    string
}

// New creates an Engine.
func New(tree Tree, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{tree: tree, notifier: notifier, topic: DefaultTopic}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle decides and applies the transition for a change at an active order.
func (e *Engine) Handle(ctx context.Context, ev router.Event) error {
	t := Decide(ev.Before, ev.After)
	applied, err := e.Apply(ctx, ev.Path, ev.Params["pushId"], t)
	slog.Debug("order transition",
		"event_id", ev.ID,
		"path", ev.Path,
		"transition", t.String(),
		"applied", applied,
	)
	return err
}

// Apply carries out t for the active order stored at path under pushID. It
// reports whether the transition took effect; a route for an order that has
// already left Active is not applied.
func (e *Engine) Apply(ctx context.Context, path, pushID string, t Transition) (bool, error) {
	switch t := t.(type) {
	case Created:
		return true, e.announce(ctx, t, orderID(t.Order, pushID))
	case RouteToPharmacy:
		id := orderID(t.Order, pushID)
		return e.route(ctx, path, model.OrderQueuePath(t.Pharmacy, id), id, t.Pharmacy)
	case RouteToInactive:
		id := orderID(t.Order, pushID)
		return e.route(ctx, path, model.InactiveOrderPath(id), id, "")
	case NoTransition:
		return false, nil
	default:
		return false, fmt.Errorf("unknown transition %T", t)
	}
}

// announce tells pharmacies about a new order. Creation never moves it.
func (e *Engine) announce(ctx context.Context, t Created, id string) error {
	sender := t.Order.UserName.String()
	if t.Pharmacy == "" {
		if _, err := e.notifier.Broadcast(ctx, e.topic, newOrderMessage(id, sender)); err != nil {
			return fmt.Errorf("announce order %s: %w", id, err)
		}
		return nil
	}
	if _, err := e.notifier.Notify(ctx, notify.Pharmacy(t.Pharmacy), specializedOrderMessage(id, sender)); err != nil {
		return fmt.Errorf("announce order %s to %s: %w", id, t.Pharmacy, err)
	}
	return nil
}

// route moves the order from path to dest and notifies the parties. pharmacy
// is empty for the inactive bucket.
func (e *Engine) route(ctx context.Context, path, dest, id, pharmacy string) (bool, error) {
	if !model.IsKey(id) {
		return false, fmt.Errorf("route order at %s: invalid order id %q", path, id)
	}
	moved, err := e.tree.Move(ctx, path, dest)
	if err != nil {
		return false, fmt.Errorf("route order %s: %w", id, err)
	}
	if moved == nil {
		slog.Debug("order already routed", "path", path, "order_id", id)
		return false, nil
	}
	slog.Info("order routed", "order_id", id, "from", path, "to", dest)

	// Notify from the record that was actually moved.
	var o model.Order
	if err := model.Decode(moved, &o); err != nil {
		return true, fmt.Errorf("decode routed order %s: %w", id, err)
	}

	var errs []error
	if owner := o.UserName.String(); model.IsKey(owner) {
		if _, err := e.notifier.Notify(ctx, notify.User(owner), acceptedMessage(id, pharmacy)); err != nil {
			errs = append(errs, fmt.Errorf("notify owner %s: %w", owner, err))
		}
	} else {
		slog.Warn("routed order has no owner", "order_id", id)
	}
	if pharmacy != "" {
		if _, err := e.notifier.Notify(ctx, notify.Pharmacy(pharmacy), specializedOrderMessage(id, o.UserName.String())); err != nil {
			errs = append(errs, fmt.Errorf("notify pharmacy %s: %w", pharmacy, err))
		}
	}
	return true, errors.Join(errs...)
}

// orderID prefers the id stored in the order over its push key.
func orderID(o model.Order, pushID string) string {
	if id := o.ID.String(); id != "" {
		return id
	}
	return pushID
}
