// Package audit keeps a bounded in-memory trail of analysis executions and
// mirrors each entry to the structured log. The trail backs the audit tool,
// so an investigation can be replayed call by call.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/security"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// bufferSize caps the in-memory trail.
const bufferSize = 1000

// Entry represents a single audit log entry
type Entry struct {
	Timestamp   time.Time     `json:"timestamp"`
	TraceID     string        `json:"trace_id"`
	SpanID      string        `json:"span_id,omitempty"`
	Tool        string        `json:"tool"`
	Operation   string        `json:"operation"` // analyze, fetch, meta
	Resource    string        `json:"resource,omitempty"`
	ResourceID  string        `json:"resource_id,omitempty"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration_ms"`
	ErrorMsg    string        `json:"error_message,omitempty"`
	ResultCount int           `json:"result_count,omitempty"`
}

// Logger records entries into a circular buffer. The zero index moves as the
// buffer wraps; entries are always returned newest first.
type Logger struct {
	enabled bool
	logger  *zap.Logger

	mu      sync.RWMutex
	entries []Entry
	next    int
	wrapped bool
}

// NewLogger creates a new audit logger
func NewLogger(logger *zap.Logger, enabled bool) *Logger {
	return &Logger{
		enabled: enabled,
		logger:  logger.Named("audit"),
		entries: make([]Entry, bufferSize),
	}
}

// Log records an audit entry
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if !l.enabled {
		return
	}

	// Enrich with trace information
	traceInfo := tracing.FromContext(ctx)
	if traceInfo.TraceID != "" {
		entry.TraceID = traceInfo.TraceID
	}
	if traceInfo.SpanID != "" {
		entry.SpanID = traceInfo.SpanID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.Time("timestamp", entry.Timestamp),
		zap.String("trace_id", entry.TraceID),
		zap.String("tool", entry.Tool),
		zap.String("operation", entry.Operation),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Resource != "" {
		fields = append(fields, zap.String("resource", entry.Resource))
	}
	if entry.ErrorMsg != "" {
		fields = append(fields, zap.String("error_message", entry.ErrorMsg))
	}
	if entry.ResultCount > 0 {
		fields = append(fields, zap.Int("result_count", entry.ResultCount))
	}
	l.logger.Info("audit", fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.wrapped = true
	}
}

// LogToolExecution is a convenience method for logging tool executions
func (l *Logger) LogToolExecution(ctx context.Context, toolName string, operation string, resource string, resourceID string, success bool, duration time.Duration, err error) {
	entry := Entry{
		Tool:       toolName,
		Operation:  operation,
		Resource:   resource,
		ResourceID: resourceID,
		Success:    success,
		Duration:   duration,
	}
	if err != nil {
		// Error strings can embed upstream URLs or keys; scrub before buffering.
		entry.ErrorMsg = security.SanitizeError(err)
	}
	l.Log(ctx, entry)
}

// snapshotNewestFirst walks the ring from the most recent entry backward,
// calling visit until it returns false. Caller must hold at least a read lock.
func (l *Logger) snapshotNewestFirst(visit func(Entry) bool) {
	count := l.next
	if l.wrapped {
		count = len(l.entries)
	}
	for i := 0; i < count; i++ {
		idx := l.next - 1 - i
		if idx < 0 {
			idx += len(l.entries)
		}
		if !visit(l.entries[idx]) {
			return
		}
	}
}

// GetRecentEntries returns the most recent audit entries, newest first.
func (l *Logger) GetRecentEntries(limit int) []Entry {
	return l.filter(limit, func(Entry) bool { return true })
}

// GetEntriesByTool returns audit entries for a specific tool, newest first.
func (l *Logger) GetEntriesByTool(toolName string, limit int) []Entry {
	return l.filter(limit, func(e Entry) bool { return e.Tool == toolName })
}

// GetEntriesByTraceID returns all entries for a specific trace, newest first.
func (l *Logger) GetEntriesByTraceID(traceID string) []Entry {
	return l.filter(0, func(e Entry) bool { return e.TraceID == traceID })
}

// filter collects up to limit matching entries; limit <= 0 means no cap.
func (l *Logger) filter(limit int, match func(Entry) bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	l.snapshotNewestFirst(func(e Entry) bool {
		if match(e) {
			result = append(result, e)
		}
		return limit <= 0 || len(result) < limit
	})
	return result
}

// Stats contains aggregated audit statistics
type Stats struct {
	TotalEntries    int            `json:"total_entries"`
	SuccessRate     float64        `json:"success_rate_pct"`
	AverageDuration time.Duration  `json:"average_duration"`
	ToolUsage       map[string]int `json:"tool_usage"`
	OperationCounts map[string]int `json:"operation_counts"`
	FailuresByTool  map[string]int `json:"failures_by_tool"`
}

// GetStats returns statistics over the buffered entries.
func (l *Logger) GetStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		ToolUsage:       make(map[string]int),
		OperationCounts: make(map[string]int),
		FailuresByTool:  make(map[string]int),
	}

	var successCount int
	var totalDuration time.Duration
	l.snapshotNewestFirst(func(e Entry) bool {
		stats.TotalEntries++
		stats.ToolUsage[e.Tool]++
		stats.OperationCounts[e.Operation]++
		if e.Success {
			successCount++
		} else {
			stats.FailuresByTool[e.Tool]++
		}
		totalDuration += e.Duration
		return true
	})

	if stats.TotalEntries > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.TotalEntries) * 100
		stats.AverageDuration = totalDuration / time.Duration(stats.TotalEntries)
	}
	return stats
}

// ToJSON returns the stats as JSON
func (s Stats) ToJSON() string {
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

// Clear drops all buffered entries (useful for testing).
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.wrapped = false
}

// IsEnabled returns whether audit logging is enabled
func (l *Logger) IsEnabled() bool {
	return l.enabled
}
