package logging

import (
	"context"
	"encoding/json"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/policyforge/wspolicy/internal/observability"
	"github.com/policyforge/wspolicy/internal/version"
)

const SchemaVersion = "1.0"

// jsonlLogger writes one JSON object per line. Every entry carries opID,
// the operation the logger was built for; Event prefers the id in its ctx.
type jsonlLogger struct {
	writer   io.Writer
	closer   io.Closer
	minLevel int
	opID     string
	mu       sync.Mutex
}

func (j *jsonlLogger) entry(level, component string) logEntry {
	return logEntry{
		Timestamp:       time.Now().Format(time.RFC3339Nano),
		Level:           level,
		Component:       component,
		OpID:            j.opID,
		SchemaVersion:   SchemaVersion,
		WSPolicyVersion: version.BuildVersion(),
		GoVersion:       runtime.Version(),
	}
}

type logEntry struct {
	Timestamp       string         `json:"ts"`
	Level           string         `json:"level"`
	Event           string         `json:"event,omitempty"`
	Component       string         `json:"component"`
	OpID            string         `json:"op_id"`
	SchemaVersion   string         `json:"schema_version"`
	WSPolicyVersion string         `json:"wspolicy_version,omitempty"`
	GoVersion       string         `json:"go_version,omitempty"`
	Message         string         `json:"msg,omitempty"`
	Fields          map[string]any `json:"fields,omitempty"`
}

func (j *jsonlLogger) log(level, component, msg string, fields ...any) {
	if levelPriority(level) < j.minLevel {
		return
	}

	entry := j.entry(level, component)
	entry.Message = msg
	entry.Fields = pairsToMap(fields)
	j.writeEntry(entry)
}

func (j *jsonlLogger) Event(ctx context.Context, event string, fields map[string]any) {
	entry := j.entry(LevelInfo, "cli")
	entry.Event = "wspolicy." + event
	if id := observability.OpID(ctx); id != "" {
		entry.OpID = id
	}
	entry.Fields = fields
	j.writeEntry(entry)
}

// pairsToMap turns alternating key/value arguments into a map. Non-string
// keys and a trailing key without value are dropped.
func pairsToMap(fields []any) map[string]any {
	if len(fields) < 2 {
		return nil
	}
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			m[key] = fields[i+1]
		}
	}
	return m
}

func (j *jsonlLogger) writeEntry(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return // silently skip malformed entries
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.writer.Write(data) // best effort
}

func (j *jsonlLogger) Debug(component, msg string, fields ...any) {
	j.log(LevelDebug, component, msg, fields...)
}

func (j *jsonlLogger) Info(component, msg string, fields ...any) {
	j.log(LevelInfo, component, msg, fields...)
}

func (j *jsonlLogger) Warn(component, msg string, fields ...any) {
	j.log(LevelWarn, component, msg, fields...)
}

func (j *jsonlLogger) Error(component, msg string, fields ...any) {
	j.log(LevelError, component, msg, fields...)
}

func (j *jsonlLogger) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
