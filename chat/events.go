package chat

// Event names carried on the wire.
const (
	EventIncoming    = "incoming"
	EventOnlineCount = "online_count"
)

// Message types inside an incoming event.
const (
	TypeChat   = "chat"
	TypeSystem = "system"
)

// SystemAuthor is the username attached to engine-authored events, such as
// moderation notices.
const SystemAuthor = "server"

// Event is a single outbound frame fanned out to room members. Data is one
// of the payload structs below; the server package marshals it to JSON.
type Event struct {
	Name string
	Data any
}

// IncomingPayload is the body of an "incoming" event.
type IncomingPayload struct {
	Type     string `json:"type"`
	Approved bool   `json:"approved"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// OnlineCountPayload is the body of an "online_count" event, emitted to the
// whole room on every membership change.
type OnlineCountPayload struct {
	Count int `json:"count"`
}

func incomingEvent(typ string, approved bool, username, message string) Event {
	return Event{Name: EventIncoming, Data: IncomingPayload{
		Type:     typ,
		Approved: approved,
		Username: username,
		Message:  message,
	}}
}

func onlineCountEvent(count int) Event {
	return Event{Name: EventOnlineCount, Data: OnlineCountPayload{Count: count}}
}
