package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinkContract(t *testing.T, newSink func(t *testing.T) Sink) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := newSink(t)
		got, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("insertion order and limits", func(t *testing.T) {
		s := newSink(t)
		for i := 0; i < 5; i++ {
			user := "acme"
			if i%2 == 1 {
				user = "sarah"
			}
			e := NewEntry(user, fmt.Sprintf("q%d", i), "search_repositories", map[string]any{"query": fmt.Sprint(i)}, StatusSuccess, "ok", 0)
			require.NoError(t, s.Append(ctx, e))
		}

		recent, err := s.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, []string{"q2", "q3", "q4"}, queries(recent))

		all, err := s.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		sarah, err := s.ForUser(ctx, "sarah", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"q1", "q3"}, queries(sarah))
		assert.Equal(t, "3", sarah[1].Arguments["query"])

		acme, err := s.ForUser(ctx, "acme", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"q4"}, queries(acme))
	})

	t.Run("preserves fields", func(t *testing.T) {
		s := newSink(t)
		e := NewEntry("acme", "make an issue", "create_issue", map[string]any{"title": "x"}, StatusError, "", 0)
		e.Error = "tool create_issue failed: forbidden"
		require.NoError(t, s.Append(ctx, e))

		got, err := s.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, e.ID, got[0].ID)
		assert.Equal(t, StatusError, got[0].Status)
		assert.Equal(t, "create_issue", got[0].ToolName)
		assert.Equal(t, e.Error, got[0].Error)
		assert.WithinDuration(t, e.Timestamp, got[0].Timestamp, time.Second)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		s := newSink(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, NewEntry("u", fmt.Sprint(i), "none", nil, StatusNoTool, "", 0)))
			}(i)
		}
		wg.Wait()
		got, err := s.Recent(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, got, 20)
	})
}

func queries(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Query
	}
	return out
}

func TestMemorySink(t *testing.T) {
	sinkContract(t, func(t *testing.T) Sink { return NewMemorySink() })
}

func TestFileSink(t *testing.T) {
	sinkContract(t, func(t *testing.T) Sink {
		s, err := NewFileSink(filepath.Join(t.TempDir(), "audit_log.json"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteSink(t *testing.T) {
	sinkContract(t, func(t *testing.T) Sink {
		dsn := fmt.Sprintf("file:audit-%d?mode=memory&cache=shared", time.Now().UnixNano())
		s, err := OpenSQLite(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestFileSink_ReloadsOnStart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit_log.json")

	s, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, NewEntry("acme", "first", "none", nil, StatusNoTool, "", 0)))

	reopened, err := NewFileSink(path)
	require.NoError(t, err)
	got, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Query)
}

func TestNewEntry(t *testing.T) {
	long := strings.Repeat("é", 300)
	e := NewEntry("acme", "q", "get_me", nil, StatusSuccess, long, 0)
	assert.Equal(t, DefaultPreviewLength, len([]rune(e.ResultPreview)))
	assert.NotEmpty(t, e.ID)
	assert.NotNil(t, e.Arguments)

	e = NewEntry("acme", "q", "get_me", nil, StatusSuccess, "abcdef", 3)
	assert.Equal(t, "abc", e.ResultPreview)
}

func TestNew_Drivers(t *testing.T) {
	s, err := New(Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemorySink{}, s)

	s, err = New(Config{Path: filepath.Join(t.TempDir(), "a.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, s)

	_, err = New(Config{Driver: "mongo"})
	assert.Error(t, err)
}
