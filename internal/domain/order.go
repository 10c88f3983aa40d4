package domain

import "time"

// OrderStatus is the user-facing aggregate over an order's child jobs.
type OrderStatus string

const (
	OrderStatusRunning   OrderStatus = "running"
	OrderStatusDone      OrderStatus = "done"
	OrderStatusError     OrderStatus = "error"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order groups the jobs produced from a single creative brief. Its status is
// never stored; it is recomputed from the children on every read.
type Order struct {
	ID             string
	AccountID      string
	Title          string
	IdempotencyKey string
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Jobs           []Job
}

// Status derives the aggregate order status.
func (o Order) Status() OrderStatus {
	if o.CancelledAt != nil {
		return OrderStatusCancelled
	}
	return AggregateStatus(o.Jobs)
}

// AggregateStatus folds child job statuses into an order status: done iff
// every child completed, error iff at least one child failed and none are
// still pending, otherwise running. Cancelled children count as settled so a
// partially-cancelled order can still reach a terminal state.
func AggregateStatus(jobs []Job) OrderStatus {
	if len(jobs) == 0 {
		return OrderStatusRunning
	}
	allCompleted := true
	anyFailed := false
	anyPending := false
	for _, j := range jobs {
		switch j.Status {
		case JobStatusCompleted:
		case JobStatusFailed:
			allCompleted = false
			anyFailed = true
		case JobStatusCancelled:
			allCompleted = false
		default:
			allCompleted = false
			anyPending = true
		}
	}
	switch {
	case allCompleted:
		return OrderStatusDone
	case anyFailed && !anyPending:
		return OrderStatusError
	default:
		return OrderStatusRunning
	}
}
