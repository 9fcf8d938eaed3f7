package notify

// Action tells the receiving app what a notification is about.
type Action string

const (
	ActionNewMedicineOrder      Action = "NewMedicineOrderAction"
	ActionNewSpecializedOrder   Action = "NewSpecializedOrderAction"
	ActionMedicineOrderAccepted Action = "MedicineOrderAcceptedAction"
	ActionMedicineRunOut        Action = "MedicineRunOutAction"

	// ActionTestNotification checks that a recipient's devices are reachable.
	ActionTestNotification Action = "TestNotificationAction"
)

// Group is the audience a notification is addressed to. It doubles as the
// top-level store node recipients live under.
type Group string

const (
	GroupUser     Group = "User"
	GroupPharmacy Group = "Pharmacy"
)

// Priority ranks notifications for the receiving app.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

// Data keys every message carries.
const (
	KeyAction    = "action"
	KeyUserGroup = "userGroup"
	KeySender    = "sender"
	KeyPriority  = "priority"
)

// Message is a push payload: a data map consumed by the app and a display
// block shown by the device.
type Message struct {
	Data  map[string]string `json:"data" yaml:"data"`
	Title string            `json:"title" yaml:"title"`
	Body  string            `json:"body" yaml:"body"`
}

// NewMessage builds a message tagged with action, group and priority.
func NewMessage(action Action, group Group, priority Priority, title, body string) Message {
	return Message{
		Data: map[string]string{
			KeyAction:    string(action),
			KeyUserGroup: string(group),
			KeyPriority:  string(priority),
		},
		Title: title,
		Body:  body,
	}
}

// With returns a copy of m with key set to value in its data map. Empty
// values are omitted.
func (m Message) With(key, value string) Message {
	data := make(map[string]string, len(m.Data)+1)
	for k, v := range m.Data {
		data[k] = v
	}
	if value != "" {
		data[key] = value
	}
	m.Data = data
	return m
}

// WithSender records who caused the notification.
func (m Message) WithSender(sender string) Message {
	return m.With(KeySender, sender)
}

// Action returns the message's action tag.
func (m Message) Action() Action {
	return Action(m.Data[KeyAction])
}

// Recipient identifies a user or pharmacy by name.
type Recipient struct {
	Group Group  `json:"group" yaml:"group"`
	Name  string `json:"name" yaml:"name"`
}

// User addresses the user called name.
func User(name string) Recipient {
	return Recipient{Group: GroupUser, Name: name}
}

// Pharmacy addresses the pharmacy called name.
func Pharmacy(name string) Recipient {
	return Recipient{Group: GroupPharmacy, Name: name}
}

// TokenPath is the store path holding the recipient's registration tokens.
func (r Recipient) TokenPath() string {
	return string(r.Group) + "/" + r.Name + "/registrationToken"
}

func (r Recipient) String() string {
	return string(r.Group) + "/" + r.Name
}
