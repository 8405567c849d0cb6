package jobs

import (
	"strconv"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeJobCreated  = "jobs.created"
	EventTypeJobAssigned = "jobs.assigned"
	EventTypeJobStatus   = "jobs.status"
)

// Created is emitted when a client posts a job.
type Created struct {
	Job *Job
}

// EventType implements the Event interface.
func (Created) EventType() string { return EventTypeJobCreated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Created) Event() *types.Event {
	attrs := map[string]string{}
	if e.Job != nil {
		attrs["jobId"] = strconv.FormatUint(e.Job.ID, 10)
		attrs["client"] = crypto.FormatAddress(e.Job.Client)
		attrs["title"] = e.Job.Title
		attrs["budget"] = e.Job.Budget.String()
		attrs["deadline"] = strconv.FormatUint(e.Job.Deadline, 10)
	}
	return &types.Event{Type: EventTypeJobCreated, Attributes: attrs}
}

// Assigned is emitted when the client picks a freelancer.
type Assigned struct {
	JobID      uint64
	Freelancer [20]byte
}

// EventType implements the Event interface.
func (Assigned) EventType() string { return EventTypeJobAssigned }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Assigned) Event() *types.Event {
	return &types.Event{
		Type: EventTypeJobAssigned,
		Attributes: map[string]string{
			"jobId":      strconv.FormatUint(e.JobID, 10),
			"freelancer": crypto.FormatAddress(e.Freelancer),
		},
	}
}

// StatusChanged is emitted on every lifecycle transition after assignment.
type StatusChanged struct {
	JobID uint64
	From  Status
	To    Status
	By    [20]byte
}

// EventType implements the Event interface.
func (StatusChanged) EventType() string { return EventTypeJobStatus }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e StatusChanged) Event() *types.Event {
	return &types.Event{
		Type: EventTypeJobStatus,
		Attributes: map[string]string{
			"jobId": strconv.FormatUint(e.JobID, 10),
			"from":  e.From.String(),
			"to":    e.To.String(),
			"by":    crypto.FormatAddress(e.By),
		},
	}
}
