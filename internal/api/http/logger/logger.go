package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	ctxEventKey ctxKey = iota
)

type ruleIndex map[string]Rule

func newRuleIndex(list []Rule) ruleIndex {
	index := make(ruleIndex, len(list))
	for _, ru := range list {
		index[ru.Method+" "+ru.Pattern] = ru
	}
	return index
}

func (idx ruleIndex) lookup(method, pattern string) (Rule, bool) {
	ru, ok := idx[method+" "+pattern]
	return ru, ok
}

// LoggerMiddleware writes one audit event per request to l. Handlers enrich
// the event through SetTarget, SetAction, SetReason and PutExtra.
func LoggerMiddleware(l Logger, component string, node string) func(http.Handler) http.Handler {
	if component == "" {
		component = "dockmate"
	}
	index := newRuleIndex(rules)

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ev := newEvent(r, component, node)
			r = r.WithContext(context.WithValue(r.Context(), ctxEventKey, ev))

			next.ServeHTTP(ww, r)

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				ev.Request.Route = rctx.RoutePattern()
			}
			ev.classify(index)
			ev.finish(ww.Status(), ww.BytesWritten(), time.Since(start))

			l.Write(*ev)
		}
		return http.HandlerFunc(fn)
	}
}

func newEvent(r *http.Request, component, node string) *Event {
	return &Event{
		TS:            time.Now().Format(time.RFC3339Nano),
		EventId:       uuid.NewString(),
		CorrelationId: middleware.GetReqID(r.Context()),
		Actor: Actor{
			PeerIp:    peerIp(r),
			UserAgent: r.UserAgent(),
		},
		Request: Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Host:   r.Host,
		},
		Runtime: Runtime{
			Component: component,
			Node:      node,
		},
	}
}

// classify fills the action and base severity. An action set by the handler
// wins over the route rule.
func (ev *Event) classify(index ruleIndex) {
	if ev.Action != "" {
		sev, ok := actionSeverity[ev.Action]
		if !ok {
			sev = SevLow
		}
		ev.Severity = sev
		return
	}
	if ru, ok := index.lookup(ev.Request.Method, ev.Request.Route); ok {
		ev.Action = ru.Action
		ev.Severity = ru.Severity
		return
	}
	ev.Action = "unknown"
	ev.Severity = SevLow
}

// finish records the outcome. Denied and failed requests are one level more
// severe than the route itself.
func (ev *Event) finish(status, bytes int, latency time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	ev.Result.Code = status
	ev.Result.Bytes = bytes
	ev.Result.LatencyMs = latency.Milliseconds()

	switch {
	case status < http.StatusBadRequest:
		ev.Result.Status = "allow"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ev.Result.Status = "deny"
		ev.Severity = ev.Severity.bump()
	default:
		ev.Result.Status = "error"
		ev.Severity = ev.Severity.bump()
	}
}

func FromContext(ctx context.Context) *Event {
	ev, _ := ctx.Value(ctxEventKey).(*Event)
	return ev
}

func SetAction(ctx context.Context, action string) {
	if ev := FromContext(ctx); ev != nil {
		ev.Action = action
	}
}

func SetTarget(ctx context.Context, target Target) {
	if ev := FromContext(ctx); ev != nil {
		ev.Target.merge(target)
	}
}

func SetReason(ctx context.Context, reason string) {
	if ev := FromContext(ctx); ev != nil {
		ev.Result.Reason = reason
	}
}

func PutExtra(ctx context.Context, k string, v any) {
	if ev := FromContext(ctx); ev != nil {
		if ev.Extra == nil {
			ev.Extra = map[string]any{}
		}
		ev.Extra[k] = v
	}
}

// JsonLineLogger writes one JSON document per event. Writes are serialized
// so concurrent requests never interleave lines.
type JsonLineLogger struct {
	mu  sync.Mutex
	Out io.Writer
}

func (l *JsonLineLogger) Write(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.Out.Write(append(b, '\n'))
}

// NewJsonLineLogger appends to path, or writes to stdout when path is empty.
// The returned closer releases the file.
func NewJsonLineLogger(path string) (*JsonLineLogger, io.Closer, error) {
	if path == "" {
		return &JsonLineLogger{Out: os.Stdout}, nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &JsonLineLogger{Out: f}, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func peerIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
