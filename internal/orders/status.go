package orders

type Status string

const (
	StatusUnderPaying Status = "under_paying"
	StatusPending     Status = "pending"
	StatusOnProcess   Status = "on_process"
	StatusOnShipping  Status = "on_shipping"
	StatusArrived     Status = "arrived"
	StatusCancelled   Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// No transition skips a state. Cancellation is possible until the parcel
// ships; once on_shipping the only exit is arrived. arrived and cancelled
// are terminal.
var validNext = map[Status]map[Status]bool{
	StatusUnderPaying: {StatusPending: true, StatusCancelled: true},
	StatusPending:     {StatusOnProcess: true, StatusCancelled: true},
	StatusOnProcess:   {StatusOnShipping: true, StatusCancelled: true},
	StatusOnShipping:  {StatusArrived: true},
	StatusArrived:     {},
	StatusCancelled:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}
