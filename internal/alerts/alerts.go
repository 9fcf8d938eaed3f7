// Package alerts tells users when a medicine box compartment runs out.
//
// The alert is edge-triggered: a notification goes out only when a
// compartment's runOutAlert flag changes into true. Rewriting a flag that is
// already true, or any other edit to the compartment, sends nothing.
package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/router"
)

// Data keys specific to run-out alerts.
const (
	KeyID                = "id"
	KeyMedicineBoxID     = "medicineBoxId"
	KeyFillUpStatus      = "fillUpStatus"
	KeyCompartmentNumber = "compartmentNumber"
	KeyMedicineName      = "medicineName"
)

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, r notify.Recipient, msg notify.Message) (notify.Report, error)
}

// Alerter sends run-out alerts.
type Alerter struct {
	notifier Notifier
}

// New creates an Alerter.
func New(notifier Notifier) *Alerter {
	return &Alerter{notifier: notifier}
}

// Handle alerts the compartment's owner if ev raised its runOutAlert flag.
func (a *Alerter) Handle(ctx context.Context, ev router.Event) error {
	user := ev.Params["name"]
	number := ev.Params["compartmentNumber"]

	msg, ok := Evaluate(number, ev.Before, ev.After)
	if !ok {
		return nil
	}
	slog.Info("compartment ran out", "event_id", ev.ID, "user", user, "compartment", number)

	report, err := a.notifier.Notify(ctx, notify.User(user), msg)
	if err != nil {
		return fmt.Errorf("run-out alert for %s compartment %s: %w", user, number, err)
	}
	if report.Resolved == 0 {
		slog.Warn("run-out alert not delivered: no registration token", "user", user)
	}
	return nil
}

// Evaluate returns the alert for a compartment changing from before to after,
// and false when the change is not a transition into run-out.
func Evaluate(compartmentNumber string, before, after any) (notify.Message, bool) {
	if after == nil {
		return notify.Message{}, false
	}
	var now model.Compartment
	if err := model.Decode(after, &now); err != nil {
		slog.Warn("unreadable compartment", "compartment", compartmentNumber, "error", err)
		return notify.Message{}, false
	}
	if !now.RunOutAlert {
		return notify.Message{}, false
	}

	var prev model.Compartment
	if before != nil {
		// An unreadable previous value counts as not run out.
		_ = model.Decode(before, &prev)
	}
	if prev.RunOutAlert {
		return notify.Message{}, false
	}

	msg := notify.NewMessage(notify.ActionMedicineRunOut, notify.GroupUser, notify.PriorityHigh,
		compartmentNumber+" has run out", "Do you want to refill online now ?").
		With(KeyID, now.ID.String()).
		With(KeyMedicineBoxID, now.MedicineBoxID.String()).
		With(KeyFillUpStatus, now.FillUpStatus.String()).
		With(KeyCompartmentNumber, compartmentNumber)
	if now.MedicineDetails != nil {
		msg = msg.With(KeyMedicineName, now.MedicineDetails.MedicineName.String())
	}
	return msg, true
}
