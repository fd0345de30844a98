package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/provider"
)

// scriptedService returns canned results per call, recording attempts.
type scriptedService struct {
	results []error
	text    string
	calls   int
}

func (s *scriptedService) Generate(_ context.Context, _ string, _ provider.Role) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.text, nil
}

func (s *scriptedService) Name() string { return "scripted" }

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{text: "ok"}
	retry := provider.NewRetry(svc, 3, time.Millisecond, 0)

	text, err := retry.Generate(context.Background(), "p", provider.RolePlanner)

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, svc.calls)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{
		results: []error{provider.ErrProvider, provider.ErrRateLimited, nil},
		text:    "third time lucky",
	}
	retry := provider.NewRetry(svc, 3, time.Millisecond, 0)

	text, err := retry.Generate(context.Background(), "p", provider.RoleExecutor)

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	assert.Equal(t, 3, svc.calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{
		results: []error{provider.ErrProvider, provider.ErrProvider, provider.ErrProvider},
	}
	retry := provider.NewRetry(svc, 3, time.Millisecond, 0)

	_, err := retry.Generate(context.Background(), "p", provider.RoleExecutor)

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Equal(t, 3, svc.calls)
}

func TestRetryDoesNotRetryUnavailable(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{
		results: []error{provider.ErrUnavailable, nil},
	}
	retry := provider.NewRetry(svc, 3, time.Millisecond, 0)

	_, err := retry.Generate(context.Background(), "p", provider.RolePlanner)

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Equal(t, 1, svc.calls, "ErrUnavailable must not be retried")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{
		results: []error{provider.ErrProvider, provider.ErrProvider, provider.ErrProvider},
	}
	retry := provider.NewRetry(svc, 3, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Generate(ctx, "p", provider.RoleExecutor)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, svc.calls, "must stop waiting once the context is cancelled")
}

func TestRoleTemperature(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.3, provider.RolePlanner.Temperature(), 0.001)
	assert.InDelta(t, 0.7, provider.RoleExecutor.Temperature(), 0.001)
	assert.InDelta(t, 0.9, provider.RoleReviewer.Temperature(), 0.001)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry()
	reg.Register("scripted", func(provider.Settings) (provider.Service, error) {
		return &scriptedService{text: "hi"}, nil
	})

	t.Run("creates registered provider", func(t *testing.T) {
		t.Parallel()

		svc, err := reg.Create("scripted", provider.Settings{})
		require.NoError(t, err)
		assert.Equal(t, "scripted", svc.Name())
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		_, err := reg.Create("nope", provider.Settings{})
		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrUnknownProvider)
	})

	t.Run("factory error propagates", func(t *testing.T) {
		t.Parallel()

		reg2 := provider.NewRegistry()
		reg2.Register("broken", func(provider.Settings) (provider.Service, error) {
			return nil, errors.New("bad settings")
		})

		_, err := reg2.Create("broken", provider.Settings{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad settings")
	})

	t.Run("available sorted", func(t *testing.T) {
		t.Parallel()

		reg3 := provider.NewRegistry()
		reg3.Register("b", func(provider.Settings) (provider.Service, error) { return nil, nil })
		reg3.Register("a", func(provider.Settings) (provider.Service, error) { return nil, nil })
		assert.Equal(t, []string{"a", "b"}, reg3.Available())
	})
}
