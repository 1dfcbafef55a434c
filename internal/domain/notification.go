package domain

import "time"

// ReportedStatus is the payment verdict carried by an inbound notification.
type ReportedStatus string

const (
	ReportedSuccess ReportedStatus = "success"
	ReportedFailed  ReportedStatus = "failed"
)

// TargetState maps a reported verdict to the terminal state it would apply.
func (r ReportedStatus) TargetState() State {
	if r == ReportedSuccess {
		return StateSucceeded
	}
	return StateFailed
}

// Valid reports whether r is a known verdict.
func (r ReportedStatus) Valid() bool {
	return r == ReportedSuccess || r == ReportedFailed
}

// Transport identifies the inbound shape a notification arrived through.
type Transport string

const (
	TransportPost   Transport = "post"
	TransportGet    Transport = "get"
	TransportReplay Transport = "replay"
)

// Notification is the canonical, transport-independent payment status report.
type Notification struct {
	// ID correlates log lines for a single delivery. Provider supplied when
	// available, generated otherwise.
	ID            string
	TransactionID string
	Status        ReportedStatus
	ReceivedAt    time.Time
	Source        Transport
}
