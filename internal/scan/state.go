package scan

import "github.com/franckalain/nutriscan/internal/models"

// State is the lifecycle stage of the current or last scan attempt.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateDecoded   State = "decoded"
	StateCancelled State = "cancelled"
	StateNoResult  State = "no_result"
	StateFailed    State = "failed"
)

// View is what the presentation layer should render.
type View string

const (
	ViewIdle          View = "idle"
	ViewScanning      View = "scanning"
	ViewDecodedResult View = "decoded_result"
	ViewUserMessage   View = "user_message"
)

// MessageKind says how a user message should be styled.
type MessageKind string

const (
	MessageNone    MessageKind = ""
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Snapshot is a copy of the controller state handed to the presentation layer.
type Snapshot struct {
	State       State                `json:"state"`
	View        View                 `json:"view"`
	DisplayMode bool                 `json:"display_mode"`
	Barcode     models.Barcode       `json:"barcode,omitempty"`
	Result      *models.LookupResult `json:"result,omitempty"`
	Message     string               `json:"message,omitempty"`
	MessageKind MessageKind          `json:"message_kind,omitempty"`
}

func (s Snapshot) view() View {
	switch {
	case s.State == StateScanning:
		return ViewScanning
	case s.State == StateDecoded, s.Result != nil:
		return ViewDecodedResult
	case s.Message != "":
		return ViewUserMessage
	default:
		return ViewIdle
	}
}
