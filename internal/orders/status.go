package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// fulfilment order of the non-cancelled statuses
var rank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	if _, ok := rank[st]; ok || st == StatusCancelled {
		return st, true
	}
	return "", false
}

// Advanceable reports whether s is a valid target for a seller status update.
func Advanceable(s Status) bool {
	_, ok := rank[s]
	return ok
}

type Action string

const (
	ActionAdvance Action = "advance"
	ActionCancel  Action = "cancel"
)

// validNext is the strict table: forward-only, cancel only before shipping.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Transitions decides from-state × action → to-state.
type Transitions struct {
	// Strict rejects backward and same-state advances. When false, a seller
	// may set any non-cancelled status on an order that is not cancelled.
	Strict bool
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Next returns the resulting status or ok=false when the move is blocked.
// For ActionCancel the target argument is ignored.
func (t Transitions) Next(from Status, action Action, target Status) (Status, bool) {
	switch action {
	case ActionCancel:
		return StatusCancelled, CanTransition(from, StatusCancelled)
	case ActionAdvance:
		if !Advanceable(target) || from == StatusCancelled {
			return from, false
		}
		if !t.Strict {
			return target, true
		}
		return target, CanTransition(from, target)
	}
	return from, false
}

// Cancellable reports whether cancel is allowed from s.
func Cancellable(s Status) bool {
	return CanTransition(s, StatusCancelled)
}
