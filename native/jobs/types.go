package jobs

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle stage of a job.
type Status uint8

const (
	StatusOpen Status = iota
	StatusAssigned
	StatusInProgress
	StatusCompleted
	StatusCancelled
	StatusDisputed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusDisputed
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusAssigned:
		return "assigned"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Job is a posting tracked by the ledger. Freelancer is the zero address
// until a freelancer is assigned.
type Job struct {
	ID             uint64
	Client         [20]byte
	Freelancer     [20]byte
	Title          string
	DescriptionRef string
	Budget         *big.Int
	Deadline       uint64
	Status         Status
	CreatedAt      uint64
	UpdatedAt      uint64
}

// HasFreelancer reports whether a freelancer has been assigned.
func (j *Job) HasFreelancer() bool {
	return j != nil && j.Freelancer != ([20]byte{})
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Budget != nil {
		clone.Budget = new(big.Int).Set(j.Budget)
	} else {
		clone.Budget = big.NewInt(0)
	}
	return &clone
}
