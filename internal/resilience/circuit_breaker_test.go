package resilience_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antinvestor/service-signal/internal/resilience"
)

var errDeliveryFailed = errors.New("delivery failed")

func TestBreakerGroup_ClosedPassesThrough(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.DefaultSettings())

	calls := 0
	err := group.Execute("client-a", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, resilience.StateClosed, group.State("client-a"))
}

func TestBreakerGroup_OpensAfterMaxFailures(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  3,
		ResetTimeout: time.Minute,
	})

	for i := 0; i < 3; i++ {
		err := group.Execute("client-a", func() error { return errDeliveryFailed })
		require.ErrorIs(t, err, errDeliveryFailed)
	}

	assert.Equal(t, resilience.StateOpen, group.State("client-a"))

	calls := 0
	err := group.Execute("client-a", func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, resilience.ErrEndpointSuspended)
	assert.Zero(t, calls, "open breaker must not call the endpoint")
}

func TestBreakerGroup_SuccessResetsFailureCount(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	})

	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))
	require.NoError(t, group.Execute("client-a", func() error { return nil }))
	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))

	assert.Equal(t, resilience.StateClosed, group.State("client-a"))
}

func TestBreakerGroup_KeysAreIndependent(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
	})

	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))
	assert.Equal(t, resilience.StateOpen, group.State("client-a"))

	err := group.Execute("client-b", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, group.State("client-b"))
}

func TestBreakerGroup_HalfOpenProbeRecovers(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
	})

	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))
	require.Equal(t, resilience.StateOpen, group.State("client-a"))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, resilience.StateHalfOpen, group.State("client-a"))

	require.NoError(t, group.Execute("client-a", func() error { return nil }))
	assert.Equal(t, resilience.StateClosed, group.State("client-a"))
}

func TestBreakerGroup_FailedProbeReopens(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
	})

	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))
	time.Sleep(30 * time.Millisecond)

	err := group.Execute("client-a", func() error { return errDeliveryFailed })
	require.ErrorIs(t, err, errDeliveryFailed)
	assert.Equal(t, resilience.StateOpen, group.State("client-a"))
}

func TestBreakerGroup_OnStateChange(t *testing.T) {
	type change struct {
		clientID string
		from, to resilience.State
	}

	var mu sync.Mutex
	var changes []change

	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
		OnStateChange: func(clientID string, from, to resilience.State) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, change{clientID: clientID, from: from, to: to})
		},
	})

	require.Error(t, group.Execute("client-a", func() error { return errDeliveryFailed }))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, group.Execute("client-a", func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, change{"client-a", resilience.StateClosed, resilience.StateOpen}, changes[0])
	assert.Equal(t, change{"client-a", resilience.StateOpen, resilience.StateHalfOpen}, changes[1])
	assert.Equal(t, change{"client-a", resilience.StateHalfOpen, resilience.StateClosed}, changes[2])
}

func TestBreakerGroup_ConcurrentExecutes(t *testing.T) {
	group := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  5,
		ResetTimeout: time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			_ = group.Execute("client-a", func() error {
				if fail {
					return errDeliveryFailed
				}
				return nil
			})
		}(i%2 == 0)
	}
	wg.Wait()

	// No panic and a coherent terminal state is what matters here.
	state := group.State("client-a")
	assert.Contains(t, []resilience.State{resilience.StateClosed, resilience.StateOpen}, state)
}
