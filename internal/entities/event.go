package entities

type EventName struct {
	Name string `json:"name"`
}

type EventMetaData struct {
	Sender    string `json:"sender"`
	SendingAt string `json:"sending_at"`
}

type EventBody[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// EventMessage is the envelope every outbound event is wrapped in.
type EventMessage[T any] struct {
	Event    EventName     `json:"event"`
	MetaData EventMetaData `json:"meta_data"`
	Body     EventBody[T]  `json:"body"`
}
