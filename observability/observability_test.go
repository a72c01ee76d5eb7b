package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersWithoutPanic(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	m.ContextsActive.WithLabelValues("conduit").Set(1)
	m.OperationsTotal.WithLabelValues("send", "OK").Inc()
	count, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, count)
}

func TestTwoMetricsInstancesDoNotConflict(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()
	m1.PackagesReceived.Inc()
	m2.PackagesReceived.Inc()
	assert.NotSame(t, m1.Registry, m2.Registry)
}

func TestInitTracerNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(TracingConfig{ServiceName: "raceboat-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSafeExecuteRecoversPanic(t *testing.T) {
	err := SafeExecute(NopLogger{}, "test_op", func() error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_op")
}

func TestSafeExecutePropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := SafeExecute(NopLogger{}, "test_op", func() error {
		return want
	})
	assert.ErrorIs(t, err, want)
}

func TestSafeGoRecoversPanic(t *testing.T) {
	done := make(chan any, 1)
	SafeGo(NopLogger{}, "test_op", func() {
		panic("boom")
	}, func(r any) {
		done <- r
	})
	recovered := <-done
	assert.Equal(t, "boom", recovered)
}
