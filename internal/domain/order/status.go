package order

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// transitions is the legal status graph. The slice order is significant: it
// is the order in which valid targets are listed in error messages and in
// ValidNextStatuses. Delivered and Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusShipped},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
}

// IsValidTransition reports whether an order may move from current to next.
// A status never transitions to itself.
func IsValidTransition(current, next Status) bool {
	if current == next {
		return false
	}
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidNextStatuses returns the statuses reachable from current, in
// declaration order. Terminal statuses return an empty slice.
func ValidNextStatuses(current Status) []Status {
	allowed := transitions[current]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// TransitionErrorMessage explains why a transition from current to next is
// rejected. It distinguishes a no-op transition, a terminal source status,
// and an invalid target.
func TransitionErrorMessage(current, next Status) string {
	if current == next {
		return fmt.Sprintf("order is already in status %s", current)
	}
	allowed := transitions[current]
	if len(allowed) == 0 {
		return fmt.Sprintf("%s is a terminal status with no valid transitions", current)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %s to %s, valid next statuses: %s",
		current, next, strings.Join(names, ", "))
}

// InvalidTransitionError is returned when a status change is rejected by the
// transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return TransitionErrorMessage(e.From, e.To)
}

// TransitionResult records a successfully applied status change.
type TransitionResult struct {
	From      Status
	To        Status
	ChangedAt time.Time
}

// ApplyTransition moves the order to next at the given time. On success it
// mutates the order: status, UpdatedAt, the ShippedDate/DeliveredDate stamp
// for the status being entered, and the audit notes (appended, newline
// separated). On failure the order is left untouched and an
// *InvalidTransitionError is returned.
func (o *Order) ApplyTransition(next Status, notes string, now time.Time) (TransitionResult, error) {
	if !IsValidTransition(o.Status, next) {
		return TransitionResult{}, &InvalidTransitionError{From: o.Status, To: next}
	}

	prev := o.Status
	o.Status = next
	o.UpdatedAt = now

	switch next {
	case StatusShipped:
		t := now
		o.ShippedDate = &t
	case StatusDelivered:
		t := now
		o.DeliveredDate = &t
	}

	if notes != "" {
		if o.Notes != "" {
			o.Notes += "\n" + notes
		} else {
			o.Notes = notes
		}
	}

	return TransitionResult{From: prev, To: next, ChangedAt: now}, nil
}
