package lifecycle

// EventEmitter receives UI notifications.
type EventEmitter interface {
	Emit(eventName string, data map[string]any)
}

// Event names emitted by the Manager.
const (
	EventSessionEntered     = "session:entered"
	EventSessionLeft        = "session:left"
	EventSessionIdleClosed  = "session:idle-closed"
	EventCasesUpdated       = "cases:updated"
	EventParticipantsUpdate = "participants:updated"
	EventValidationRejected = "validation:rejected"
	EventSyncError          = "sync:error"
	EventSyncConflict       = "sync:conflict"
)

// LeaveReason is attached to session:left.
type LeaveReason string

const (
	ReasonManual  LeaveReason = "manual"
	ReasonIdle    LeaveReason = "idle"
	ReasonLogout  LeaveReason = "logout"
	ReasonRemoved LeaveReason = "removed"
)

type noopEmitter struct{}

func (noopEmitter) Emit(string, map[string]any) {}
