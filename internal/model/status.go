package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a reservation. Values are persisted
// verbatim in reservations.status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// transitions lists, for every state, the states it may move to. States
// without an entry are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransition reports whether a reservation in state from may move to state to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", v)
	}
	return s, nil
}

// HistoryAction tags an entry in reservation_history.
type HistoryAction string

const (
	ActionCreated   HistoryAction = "CREATED"
	ActionConfirmed HistoryAction = "CONFIRMED"
	ActionCancelled HistoryAction = "CANCELLED"
	ActionModified  HistoryAction = "MODIFIED"
	ActionCompleted HistoryAction = "COMPLETED"
	ActionNoShow    HistoryAction = "NO_SHOW"
)

// TableStatus is the best known state of a physical table as reported by
// the restaurant side.
type TableStatus string

const (
	TableAvailable TableStatus = "AVAILABLE"
	TableReserved  TableStatus = "RESERVED"
	TableOccupied  TableStatus = "OCCUPIED"
	TableUnknown   TableStatus = "UNKNOWN"
)

// ActorSystem identifies transitions performed by background jobs.
const ActorSystem = "SYSTEM"

// ParseTableStatus maps a wire value onto TableStatus; anything
// unrecognized becomes TableUnknown.
func ParseTableStatus(s string) TableStatus {
	switch st := TableStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TableAvailable, TableReserved, TableOccupied:
		return st
	}
	return TableUnknown
}
