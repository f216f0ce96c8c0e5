package orders

// Status is an order's lifecycle state. Only pending and confirmed are
// produced here; shipped, delivered and cancelled belong to the external
// fulfillment system.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether from may legally move to to.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
