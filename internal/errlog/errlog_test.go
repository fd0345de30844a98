package errlog_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/errlog"
)

func TestSinkRingBounded(t *testing.T) {
	t.Parallel()

	sink := errlog.NewSink(3, nil)
	for i := 0; i < 10; i++ {
		sink.Record("mod", string(rune('a'+i)), errlog.SeverityError, errlog.CategoryAPI)
	}

	recent := sink.Recent(10)
	require.Len(t, recent, 3)
	// Newest first.
	assert.Equal(t, "j", recent[0].Message)
	assert.Equal(t, "i", recent[1].Message)
	assert.Equal(t, "h", recent[2].Message)
}

func TestSinkRecentFewerThanCapacity(t *testing.T) {
	t.Parallel()

	sink := errlog.NewSink(100, nil)
	sink.Record("a", "first", errlog.SeverityWarning, errlog.CategoryNetwork)
	sink.Record("b", "second", errlog.SeverityError, errlog.CategoryStorage, errlog.WithUser("u1"))

	recent := sink.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
	assert.Equal(t, "u1", recent[0].UserID)
	assert.Equal(t, errlog.CategoryNetwork, recent[1].Category)
}

func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	assert.Less(t, errlog.SeverityInfo, errlog.SeverityWarning)
	assert.Less(t, errlog.SeverityWarning, errlog.SeverityError)
	assert.Less(t, errlog.SeverityError, errlog.SeverityCritical)
}

// failingAppender always fails; Record must still succeed.
type failingAppender struct{}

func (failingAppender) Append(errlog.Record) error { return errors.New("disk full") }
func (failingAppender) Close() error               { return nil }

func TestRecordIsolatedFromAppenderFailure(t *testing.T) {
	t.Parallel()

	sink := errlog.NewSink(10, failingAppender{})

	// Must not panic or drop the in-memory record.
	sink.Record("mod", "boom", errlog.SeverityCritical, errlog.CategorySystem)

	recent := sink.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "boom", recent[0].Message)
}

func TestSQLiteAppender(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.db")
	appender, err := errlog.NewSQLiteAppender(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = appender.Close() })

	sink := errlog.NewSink(10, appender)
	sink.Record("provider", "rate limited", errlog.SeverityWarning, errlog.CategoryAPI,
		errlog.WithUser("u9"), errlog.WithMeta("provider", "openai"))

	recent := sink.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "rate limited", recent[0].Message)
	assert.Equal(t, "openai", recent[0].Metadata["provider"])
}

func TestStats(t *testing.T) {
	t.Parallel()

	sink := errlog.NewSink(10, nil)
	sink.Record("api", "one", errlog.SeverityError, errlog.CategoryAPI)
	sink.Record("api", "two", errlog.SeverityError, errlog.CategoryAPI)
	sink.Record("storage", "three", errlog.SeverityWarning, errlog.CategoryStorage)

	stats := sink.Stats()

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.BySeverity["ERROR"])
	assert.Equal(t, 1, stats.BySeverity["WARNING"])
	assert.Equal(t, 2, stats.ByCategory["API"])
	assert.Equal(t, 1, stats.ByCategory["STORAGE"])
}

func TestSeverityMarshalsAsName(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(errlog.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, `"CRITICAL"`, string(data))
}
