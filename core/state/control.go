package state

import (
	"fmt"
	"sort"
	"strings"

	"gigchain/core/types"
)

var (
	pausePrefix      = []byte("control/pause/")
	ledgerAdminKey   = []byte("control/admin")
	eventRecordKey   = "events/record/%020d"
	eventSequenceKey = []byte("events/seq")
)

func pauseKey(module string) []byte {
	normalized := strings.ToLower(strings.TrimSpace(module))
	buf := make([]byte, len(pausePrefix)+len(normalized))
	copy(buf, pausePrefix)
	copy(buf[len(pausePrefix):], normalized)
	return buf
}

// IsPaused reports whether module has been halted. Lookup failures are
// reported as not paused.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

// SetPaused records the pause flag for module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if strings.TrimSpace(module) == "" {
		return fmt.Errorf("control: module required")
	}
	if !paused {
		return m.KVDelete(pauseKey(module))
	}
	return m.KVPut(pauseKey(module), true)
}

// LedgerAdmin returns the principal allowed to pause modules.
func (m *Manager) LedgerAdmin() ([20]byte, bool, error) {
	var admin [20]byte
	ok, err := m.KVGet(ledgerAdminKey, &admin)
	return admin, ok, err
}

// SetLedgerAdmin records the principal allowed to pause modules.
func (m *Manager) SetLedgerAdmin(admin [20]byte) error {
	if admin == ([20]byte{}) {
		return fmt.Errorf("control: admin required")
	}
	return m.KVPut(ledgerAdminKey, admin)
}

type storedEvent struct {
	Type   string
	Keys   []string
	Values []string
}

// EventCount returns the number of events appended to the log.
func (m *Manager) EventCount() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(eventSequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendEvent adds evt to the ordered event log and returns its sequence
// number. Sequence numbers start at 1.
func (m *Manager) AppendEvent(evt *types.Event) (uint64, error) {
	if evt == nil || evt.Type == "" {
		return 0, fmt.Errorf("events: event type required")
	}
	seq, err := m.EventCount()
	if err != nil {
		return 0, err
	}
	seq++
	record := storedEvent{Type: evt.Type}
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.Keys = append(record.Keys, k)
		record.Values = append(record.Values, evt.Attributes[k])
	}
	if err := m.KVPut([]byte(fmt.Sprintf(eventRecordKey, seq)), record); err != nil {
		return 0, err
	}
	if err := m.KVPut(eventSequenceKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// EventAt returns the event stored at seq.
func (m *Manager) EventAt(seq uint64) (*types.Event, bool, error) {
	var record storedEvent
	ok, err := m.KVGet([]byte(fmt.Sprintf(eventRecordKey, seq)), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	if len(record.Keys) != len(record.Values) {
		return nil, false, fmt.Errorf("events: corrupt record %d", seq)
	}
	evt := &types.Event{Type: record.Type, Attributes: make(map[string]string, len(record.Keys))}
	for i, k := range record.Keys {
		evt.Attributes[k] = record.Values[i]
	}
	return evt, true, nil
}
