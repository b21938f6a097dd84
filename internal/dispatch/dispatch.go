// Package dispatch runs one natural-language request end to end: open a
// tool session with the user's credential, discover the tools, let the
// selector choose one, invoke it and record the outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/selector"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// DefaultService is the credential service requests run against.
const DefaultService = "github"

// NoToolMessage is returned when no tool fits a request.
const NoToolMessage = "I couldn't find a suitable tool for that request."

// ToolSelector picks a tool for a query.
type ToolSelector interface {
	Select(ctx context.Context, query string, tools []mcp.Tool) (selector.Selection, error)
}

// Outcome is the result of one request.
type Outcome struct {
	Status    audit.Status
	ToolName  string
	Arguments map[string]any
	Result    string
	AuditID   string
}

// Message is the user-facing text of the outcome.
func (o *Outcome) Message() string {
	if o.Status == audit.StatusNoTool {
		return NoToolMessage
	}
	return o.Result
}

// Dispatcher handles agent requests.
type Dispatcher struct {
	sessions   *toolsession.Manager
	selector   ToolSelector
	sink       audit.Sink
	service    string
	previewLen int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithService sets the credential service requests use.
func WithService(service string) Option {
	return func(d *Dispatcher) {
		d.service = service
	}
}

// WithPreviewLength bounds audit result previews.
func WithPreviewLength(n int) Option {
	return func(d *Dispatcher) {
		d.previewLen = n
	}
}

// New creates a Dispatcher.
func New(sessions *toolsession.Manager, sel ToolSelector, sink audit.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions:   sessions,
		selector:   sel,
		sink:       sink,
		service:    DefaultService,
		previewLen: audit.DefaultPreviewLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Service returns the credential service requests run against.
func (d *Dispatcher) Service() string {
	return d.service
}

// Handle runs query for subject. Exactly one audit entry is written per
// call, before Handle returns, whatever the outcome. The tool session is
// always closed.
func (d *Dispatcher) Handle(ctx context.Context, subject, query string) (*Outcome, error) {
	logging.Info("Dispatch", "Handling request for %s via %s", subject, d.service)

	sess, err := d.sessions.Open(ctx, subject, d.service)
	if err != nil {
		return d.finish(ctx, subject, query, selector.None(), nil, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logging.Warn("Dispatch", "Closing tool session failed: %v", cerr)
		}
	}()

	tools, err := sess.ListTools(ctx)
	if err != nil {
		return d.finish(ctx, subject, query, selector.None(), nil, err)
	}

	sel, err := d.selector.Select(ctx, query, tools)
	if err != nil {
		return d.finish(ctx, subject, query, selector.None(), nil, fmt.Errorf("tool selection failed: %w", err))
	}
	if sel.IsNone() {
		return d.finish(ctx, subject, query, sel, nil, nil)
	}

	res, err := sess.CallTool(ctx, sel.ToolName, sel.Arguments)
	return d.finish(ctx, subject, query, sel, res, err)
}

// finish writes the audit entry and builds the outcome.
func (d *Dispatcher) finish(ctx context.Context, subject, query string, sel selector.Selection, res *mcp.CallToolResult, callErr error) (*Outcome, error) {
	out := &Outcome{ToolName: sel.ToolName, Arguments: sel.Arguments}
	switch {
	case callErr != nil:
		out.Status = audit.StatusError
	case sel.IsNone():
		out.Status = audit.StatusNoTool
	default:
		out.Status = audit.StatusSuccess
		out.Result = toolsession.ResultText(res)
	}

	entry := audit.NewEntry(subject, query, sel.ToolName, sel.Arguments, out.Status, out.Result, d.previewLen)
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	out.AuditID = entry.ID

	// The entry is recorded even when the request was cancelled.
	if err := d.sink.Append(context.WithoutCancel(ctx), entry); err != nil {
		logging.Error("Dispatch", err, "Failed to record audit entry %s", entry.ID)
		return out, errors.Join(callErr, fmt.Errorf("failed to record audit entry: %w", err))
	}

	if callErr != nil {
		logging.Warn("Dispatch", "Request for %s failed: %v", subject, callErr)
		return out, callErr
	}
	logging.Info("Dispatch", "Request for %s finished: status=%s tool=%s", subject, out.Status, out.ToolName)
	return out, nil
}
