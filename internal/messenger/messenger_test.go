package messenger_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/messenger"
)

func TestChunk(t *testing.T) {
	t.Parallel()

	t.Run("short text is a single chunk", func(t *testing.T) {
		t.Parallel()

		got := messenger.Chunk("short", 100)
		assert.Equal(t, []string{"short"}, got)
	})

	t.Run("long text is split under the limit", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("a", 250)
		got := messenger.Chunk(text, 100)

		require.Len(t, got, 3)
		for _, chunk := range got {
			assert.LessOrEqual(t, len(chunk), 100)
		}
		assert.Equal(t, text, strings.Join(got, ""))
	})

	t.Run("prefers line boundaries", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("x", 80) + "\n" + strings.Repeat("y", 80)
		got := messenger.Chunk(text, 100)

		require.Len(t, got, 2)
		assert.Equal(t, strings.Repeat("x", 80), got[0])
		assert.Equal(t, strings.Repeat("y", 80), got[1])
	})

	t.Run("non-positive limit returns text unchanged", func(t *testing.T) {
		t.Parallel()

		got := messenger.Chunk("anything", 0)
		assert.Equal(t, []string{"anything"}, got)
	})
}
