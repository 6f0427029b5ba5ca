package domain

import "time"

// ModelStatus is the last-known health of one model.
type ModelStatus string

const StatusOK ModelStatus = "ok"

// OK reports whether the model answered its last probe.
func (s ModelStatus) OK() bool { return s == StatusOK }

// ModelAvailability is a point-in-time snapshot of every probed model,
// persisted alongside its rendered report.
type ModelAvailability struct {
	Statuses  map[string]ModelStatus
	CheckedAt time.Time
}

// Available reports the advisory status for a model. Unknown models are
// treated as available: absence of a probe result is not evidence of failure.
func (m *ModelAvailability) Available(model string) bool {
	if m == nil || m.Statuses == nil {
		return true
	}
	status, ok := m.Statuses[model]
	if !ok {
		return true
	}
	return status.OK()
}
