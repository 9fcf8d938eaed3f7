package orders

import "github.com/roach88/medibox/internal/notify"

// KeyOrderID carries the order id in notification data.
const KeyOrderID = "orderId"

func newOrderMessage(orderID, sender string) notify.Message {
	return notify.NewMessage(notify.ActionNewMedicineOrder, notify.GroupPharmacy, notify.PriorityMedium,
		"New order comes in", "Click to know more !").
		WithSender(sender).
		With(KeyOrderID, orderID)
}

func specializedOrderMessage(orderID, sender string) notify.Message {
	return notify.NewMessage(notify.ActionNewSpecializedOrder, notify.GroupPharmacy, notify.PriorityHigh,
		"New order for your pharmacy", "A customer picked you for this order. Click to know more !").
		WithSender(sender).
		With(KeyOrderID, orderID)
}

func acceptedMessage(orderID, sender string) notify.Message {
	return notify.NewMessage(notify.ActionMedicineOrderAccepted, notify.GroupUser, notify.PriorityMedium,
		"Medicine Order Accepted", "Just sit still and wait for your medicine !").
		WithSender(sender).
		With(KeyOrderID, orderID)
}
