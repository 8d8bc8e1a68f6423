package domain

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// MessageType is the content kind of a message.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// statusRank orders the forward delivery path. Failed is terminal and
// reachable from sending only, so it sits outside the rank order.
var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is a known delivery status.
func (s MessageStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether the delivery state machine accepts a
// move from s to target. The status never regresses; delivered and read
// re-apply idempotently; failed is reachable from sending only.
func (s MessageStatus) CanTransition(target MessageStatus) bool {
	if target == StatusFailed {
		return s == StatusSending
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	if from == to {
		// Re-applying the same transition must not error.
		return target == StatusDelivered || target == StatusRead
	}
	return to > from
}
