package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/provider"
	"github.com/gosuda/duet/internal/provider/gemini"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) provider.Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gemini.New(provider.Settings{
		APIKey:  "test-key",
		Model:   "gemini-1.5-pro",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	svc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "task: do the thing"}},
					"role":  "model",
				}},
			},
		})
	})

	text, err := svc.Generate(context.Background(), "plan this", provider.RolePlanner)

	require.NoError(t, err)
	assert.Equal(t, "task: do the thing", text)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: provider.ErrRateLimited},
		{name: "forbidden", status: http.StatusForbidden, wantErr: provider.ErrAuth},
		{name: "server error", status: http.StatusBadGateway, wantErr: provider.ErrProvider},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := svc.Generate(context.Background(), "p", provider.RoleReviewer)

			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	t.Parallel()

	svc, err := gemini.New(provider.Settings{Model: "gemini-1.5-pro", BaseURL: "http://unused"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "p", provider.RolePlanner)

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	t.Parallel()

	svc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := svc.Generate(context.Background(), "p", provider.RolePlanner)

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
}
