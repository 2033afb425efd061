package logging

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/policyforge/wspolicy/internal/observability"
)

// textLogger writes one human-readable line per entry:
//
//	15:04:05.000 WARN  translator: message key=value
type textLogger struct {
	writer   io.Writer
	closer   io.Closer
	minLevel int
	mu       sync.Mutex
}

func (t *textLogger) log(level, component, msg string, fields map[string]any) {
	if levelPriority(level) < t.minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s: %s", time.Now().Format("15:04:05.000"), strings.ToUpper(level), component, msg)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.writer, b.String())
}

func (t *textLogger) Debug(component, msg string, fields ...any) {
	t.log(LevelDebug, component, msg, pairsToMap(fields))
}

func (t *textLogger) Info(component, msg string, fields ...any) {
	t.log(LevelInfo, component, msg, pairsToMap(fields))
}

func (t *textLogger) Warn(component, msg string, fields ...any) {
	t.log(LevelWarn, component, msg, pairsToMap(fields))
}

func (t *textLogger) Error(component, msg string, fields ...any) {
	t.log(LevelError, component, msg, pairsToMap(fields))
}

// Event is logged at debug level; pretty output is meant for people.
func (t *textLogger) Event(ctx context.Context, event string, fields map[string]any) {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	if id := observability.OpID(ctx); id != "" {
		merged["op_id"] = id
	}
	t.log(LevelDebug, "cli", event, merged)
}

func (t *textLogger) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
