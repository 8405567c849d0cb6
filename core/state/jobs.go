package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"gigchain/native/jobs"
)

var (
	jobRecordPrefix = []byte("jobs/record/")
	jobCounterKey   = []byte("jobs/counter")
)

func jobRecordKey(id uint64) []byte {
	buf := make([]byte, len(jobRecordPrefix)+8)
	copy(buf, jobRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(jobRecordPrefix):], id)
	return buf
}

type storedJob struct {
	ID             uint64
	Client         [20]byte
	Freelancer     [20]byte
	Title          string
	DescriptionRef string
	Budget         *big.Int
	Deadline       uint64
	Status         uint8
	CreatedAt      uint64
	UpdatedAt      uint64
}

// JobPut persists a job record.
func (m *Manager) JobPut(job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("jobs: nil job")
	}
	if job.ID == 0 {
		return fmt.Errorf("jobs: job id must be non-zero")
	}
	budget := big.NewInt(0)
	if job.Budget != nil {
		budget.Set(job.Budget)
	}
	record := storedJob{
		ID:             job.ID,
		Client:         job.Client,
		Freelancer:     job.Freelancer,
		Title:          job.Title,
		DescriptionRef: job.DescriptionRef,
		Budget:         budget,
		Deadline:       job.Deadline,
		Status:         uint8(job.Status),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	return m.KVPut(jobRecordKey(job.ID), record)
}

// JobGet loads the job with the given identifier.
func (m *Manager) JobGet(id uint64) (*jobs.Job, bool, error) {
	if id == 0 {
		return nil, false, nil
	}
	var record storedJob
	ok, err := m.KVGet(jobRecordKey(id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	job := &jobs.Job{
		ID:             record.ID,
		Client:         record.Client,
		Freelancer:     record.Freelancer,
		Title:          record.Title,
		DescriptionRef: record.DescriptionRef,
		Budget:         big.NewInt(0),
		Deadline:       record.Deadline,
		Status:         jobs.Status(record.Status),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.Budget != nil {
		job.Budget.Set(record.Budget)
	}
	return job, true, nil
}

// JobCount returns the number of job identifiers handed out so far.
func (m *Manager) JobCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(jobCounterKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// JobNextID advances the job counter and returns the new identifier. The first
// identifier is 1; zero never names a job.
func (m *Manager) JobNextID() (uint64, error) {
	count, err := m.JobCount()
	if err != nil {
		return 0, err
	}
	next := count + 1
	if err := m.KVPut(jobCounterKey, next); err != nil {
		return 0, err
	}
	return next, nil
}
