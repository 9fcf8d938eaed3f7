// Package triggers binds the medibox handlers to the tree paths they watch.
package triggers

import (
	"fmt"

	"github.com/roach88/medibox/internal/alerts"
	"github.com/roach88/medibox/internal/enrich"
	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/orders"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
)

// Route names used in logs.
const (
	RouteEnrichMedicine = "enrich-medicine"
	RouteRunOutAlert    = "run-out-alert"
	RouteOrderLifecycle = "order-lifecycle"
)

// Deps are the collaborators the handlers share.
type Deps struct {
	Store     *store.Store
	Transport notify.Transport

	// OrderTopic overrides orders.DefaultTopic when set.
	OrderTopic string
}

// Register adds every medibox handler to r.
func Register(r *router.Router, deps Deps) error {
	if deps.Store == nil || deps.Transport == nil {
		return fmt.Errorf("register triggers: store and transport are required")
	}
	dispatcher := notify.NewDispatcher(deps.Store, deps.Transport)

	var orderOpts []orders.Option
	if deps.OrderTopic != "" {
		orderOpts = append(orderOpts, orders.WithTopic(deps.OrderTopic))
	}

	routes := []struct {
		name    string
		pattern string
		handler router.Handler
	}{
		{RouteEnrichMedicine, model.MedicineEntryPattern, enrich.New(deps.Store)},
		{RouteRunOutAlert, model.CompartmentPattern, alerts.New(dispatcher)},
		{RouteOrderLifecycle, model.ActiveOrderPattern, orders.New(deps.Store, dispatcher, orderOpts...)},
	}
	for _, rt := range routes {
		if err := r.Handle(rt.name, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("register triggers: %w", err)
		}
	}
	return nil
}
