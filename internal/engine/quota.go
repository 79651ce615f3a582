package engine

import (
	"fmt"
	"sync"
)

// DefaultMaxSteps bounds the number of intents in one flow.
const DefaultMaxSteps = 32

// QuotaEnforcer counts the intents dispatched in one flow and refuses
// the flow once it passes the limit. Follow-ups that keep re-triggering
// each other (a refresh that mutates, a mutation that refreshes) stop
// there instead of running forever.
//
// Thread-safety: a flow's follow-ups may be dispatched from different
// task goroutines, so Check is guarded by a mutex.
type QuotaEnforcer struct {
	mu       sync.Mutex
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and returns StepsExceededError past the limit.
func (q *QuotaEnforcer) Check(flowToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			FlowToken: flowToken,
			Steps:     q.current,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a flow exceeds the max steps quota.
// The refused intent is dropped; intents already running finish.
type StepsExceededError struct {
	FlowToken string
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded max steps quota: %d steps > %d limit",
		e.FlowToken, e.Steps, e.Limit)
}
