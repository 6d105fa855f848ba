package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const AggregateCertification OutboxAggregateType = "certification"

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateCertification
}

// OutboxEventType is the event_type column of outbox_events and the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventCertificationSubmitted     OutboxEventType = "certification_submitted"
	EventCertificationStatusChanged OutboxEventType = "certification_status_changed"
	EventCertificationDeleted       OutboxEventType = "certification_deleted"
)

// OutboxEventTypes lists every event the service emits.
func OutboxEventTypes() []OutboxEventType {
	return []OutboxEventType{
		EventCertificationSubmitted,
		EventCertificationStatusChanged,
		EventCertificationDeleted,
	}
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(OutboxEventTypes(), e)
}

// OutboxDLQErrorReason records why an event was parked in outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
