package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)
	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check("flow-1"), "step %d should be allowed", i+1)
	}
	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("flow-1"))
	}

	err := q.Check("flow-1")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "flow-1", stepsErr.FlowToken)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.True(t, IsStepsExceeded(err))
	assert.True(t, IsStepsExceeded(fmt.Errorf("wrapped: %w", err)))
}

func TestQuotaEnforcer_Concurrent(t *testing.T) {
	q := NewQuotaEnforcer(100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	refused := 0
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Check("flow-1") != nil {
				mu.Lock()
				refused++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, refused)
	assert.Equal(t, 150, q.Current())
}

func TestStepsExceededError_Error(t *testing.T) {
	err := &StepsExceededError{FlowToken: "flow-abc", Steps: 33, Limit: 32}
	assert.Equal(t, "flow flow-abc exceeded max steps quota: 33 steps > 32 limit", err.Error())
}

func TestRuntimeError_Predicates(t *testing.T) {
	sup := newSupersededError("GET_SPECIES", "flow-1")
	assert.True(t, IsSuperseded(sup))
	assert.False(t, IsClosed(sup))
	assert.Equal(t, "SUPERSEDED: a newer dispatch of this op is in flight (flow=flow-1, op=GET_SPECIES)", sup.Error())

	closed := newClosedError("GET_USER")
	assert.True(t, IsClosed(fmt.Errorf("dispatch: %w", closed)))
	assert.Equal(t, "DISPATCHER_CLOSED: dispatcher is closed (op=GET_USER)", closed.Error())

	noRoute := newNoRouteError("GET_USER", "variant.cue")
	assert.True(t, IsNoRoute(noRoute))
	assert.Equal(t, "variant.cue", noRoute.Details["catalog"])

	assert.Equal(t, "UNKNOWN_INTENT: nil intent", newUnknownIntentError(nil).Error())
	assert.False(t, IsSuperseded(nil))
}
