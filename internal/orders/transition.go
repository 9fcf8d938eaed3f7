package orders

import (
	"fmt"

	"github.com/roach88/medibox/internal/model"
)

// Transition is the lifecycle step a change at an active order calls for.
type Transition interface {
	transition()
	String() string
}

// Created is a new active order. Pharmacy is set when the user targeted a
// single pharmacy; otherwise the order is broadcast.
type Created struct {
	Order    model.Order
	Pharmacy string
}

// RouteToPharmacy moves the order into the pharmacy's queue.
type RouteToPharmacy struct {
	Order    model.Order
	Pharmacy string
}

// RouteToInactive moves the order into the inactive bucket.
type RouteToInactive struct {
	Order model.Order
}

// NoTransition leaves the order where it is.
type NoTransition struct {
	Reason string
}

func (Created) transition()         {}
func (RouteToPharmacy) transition() {}
func (RouteToInactive) transition() {}
func (NoTransition) transition()    {}

func (t Created) String() string {
	if t.Pharmacy == "" {
		return "created(broadcast)"
	}
	return fmt.Sprintf("created(%s)", t.Pharmacy)
}

func (t RouteToPharmacy) String() string { return fmt.Sprintf("route_to_pharmacy(%s)", t.Pharmacy) }
func (RouteToInactive) String() string   { return "route_to_inactive" }
func (t NoTransition) String() string    { return fmt.Sprintf("none(%s)", t.Reason) }

// Decide returns the transition for an active order changing from before to
// after. It reads nothing but its arguments.
//
//	before  after                           transition
//	-       -                               none
//	any     nil                             none (deleted)
//	nil     targeted                        Created{pharmacy}
//	nil     untargeted                      Created{}
//	set     availability=false              RouteToInactive
//	set     targeted                        RouteToPharmacy{drugstore}
//	set     availability=true               RouteToPharmacy{accepting pharmacy}
//	set     otherwise                       none
func Decide(before, after any) Transition {
	if after == nil {
		return NoTransition{Reason: "deleted"}
	}
	var o model.Order
	if err := model.Decode(after, &o); err != nil {
		return NoTransition{Reason: "malformed order: " + err.Error()}
	}

	if before == nil {
		if !o.Targeted() {
			return Created{Order: o}
		}
		name := o.PharmacyName()
		if !model.IsKey(name) {
			return NoTransition{Reason: "targeted order names no pharmacy"}
		}
		return Created{Order: o, Pharmacy: name}
	}

	if o.Availability != nil && !*o.Availability {
		return RouteToInactive{Order: o}
	}
	if o.Targeted() || (o.Availability != nil && *o.Availability) {
		name := o.PharmacyName()
		if !o.Targeted() {
			name = o.AcceptedBy()
		}
		if !model.IsKey(name) {
			return NoTransition{Reason: "routed order names no pharmacy"}
		}
		return RouteToPharmacy{Order: o, Pharmacy: name}
	}
	return NoTransition{Reason: "awaiting decision"}
}
