// Package audit records one entry per agent request: who asked, what was
// asked, which tool ran with which arguments, and how it ended.
//
// Entries are append-only and kept in insertion order. Recent and ForUser
// return the newest entries, oldest first.
package audit

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the outcome of one agent request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusNoTool  Status = "no_tool"
)

const (
	// DefaultPreviewLength bounds the stored result preview.
	DefaultPreviewLength = 200

	// DefaultLimit is used by listings when no positive limit is given.
	DefaultLimit = 50
)

// Entry is one audit record.
type Entry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	UserID        string         `json:"user_id"`
	Query         string         `json:"query"`
	ToolName      string         `json:"tool_name"`
	Arguments     map[string]any `json:"arguments"`
	Status        Status         `json:"status"`
	ResultPreview string         `json:"result_preview,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Sink stores audit entries.
type Sink interface {
	// Append stores e durably before returning.
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit of the newest entries, oldest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// ForUser is Recent restricted to one user.
	ForUser(ctx context.Context, userID string, limit int) ([]Entry, error)
	Close() error
}

// NewEntry fills in the identifier and timestamp of a new entry and bounds
// the result preview to previewLen runes (DefaultPreviewLength when zero).
func NewEntry(userID, query, tool string, args map[string]any, status Status, result string, previewLen int) Entry {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}
	if args == nil {
		args = map[string]any{}
	}
	return Entry{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		UserID:        userID,
		Query:         query,
		ToolName:      tool,
		Arguments:     args,
		Status:        status,
		ResultPreview: Truncate(result, previewLen),
	}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// tail returns the last limit entries matching keep, oldest first.
func tail(entries []Entry, limit int, keep func(Entry) bool) []Entry {
	limit = normalizeLimit(limit)
	out := make([]Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if keep == nil || keep(entries[i]) {
			out = append(out, entries[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
