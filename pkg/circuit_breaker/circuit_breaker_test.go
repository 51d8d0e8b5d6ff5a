package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/openshelf/library-service/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

func Test_circuitBreaker_Call(t *testing.T) {
	successfulService := func() error {
		return nil
	}
	failingService := func() error {
		return errors.New("service error")
	}

	cb := circuit_breaker.New(10, 50*time.Millisecond, 0.3, 3)

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Call(successfulService))
	}

	// enough failures to cross the percentile and open the breaker
	for i := 0; i < 4; i++ {
		require.Error(t, cb.Call(failingService))
	}
	require.ErrorIs(t, cb.Call(successfulService), circuit_breaker.ErrOpenCB)

	// after the timeout the breaker probes in half-open and recovers
	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Call(successfulService))
	}
	require.NoError(t, cb.Call(successfulService))
}

func Test_circuitBreaker_HalfOpenFailure(t *testing.T) {
	failingService := func() error {
		return errors.New("service error")
	}

	cb := circuit_breaker.New(4, 50*time.Millisecond, 0.5, 2)

	for i := 0; i < 2; i++ {
		require.Error(t, cb.Call(failingService))
	}
	require.ErrorIs(t, cb.Call(failingService), circuit_breaker.ErrOpenCB)

	// a failing probe in half-open reopens immediately
	time.Sleep(60 * time.Millisecond)
	require.Error(t, cb.Call(failingService))
	require.ErrorIs(t, cb.Call(failingService), circuit_breaker.ErrOpenCB)
}
