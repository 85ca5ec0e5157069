// Package session provides session context management for the MCP server.
// It maintains state across tool calls within a conversation to enable
// intelligent tool chaining and contextual suggestions.
package session

import (
	"sync"
	"time"
)

// Context holds session state that persists across tool calls
type Context struct {
	mu sync.RWMutex

	// Window context - log windows analyzed so far
	LastWindow       *WindowInfo
	RecentWindows    []WindowInfo
	maxRecentWindows int

	// Resource context - last accessed analysis artifacts by type
	LastResources map[string]*ResourceInfo

	// Error context
	RecentErrors    []ErrorInfo
	maxRecentErrors int

	// Session metadata
	CreatedAt time.Time
	UpdatedAt time.Time
	ToolCalls int
}

// WindowInfo stores information about one analyzed log window
type WindowInfo struct {
	Query       string                 `json:"query"`
	StartDate   string                 `json:"start_date,omitempty"`
	EndDate     string                 `json:"end_date,omitempty"`
	RecordCount int                    `json:"record_count"`
	HasErrors   bool                   `json:"has_errors"`
	TopServices []string               `json:"top_services,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ResourceInfo stores information about an accessed analysis artifact
type ResourceInfo struct {
	Type      string    `json:"type"` // signature_cluster, causal_chain, batch_comparison, etc.
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorInfo stores information about errors encountered
type ErrorInfo struct {
	Tool      string    `json:"tool"`
	Message   string    `json:"message"`
	Code      int       `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new session context
func New() *Context {
	return &Context{
		LastResources:    make(map[string]*ResourceInfo),
		RecentWindows:    make([]WindowInfo, 0, 10),
		RecentErrors:     make([]ErrorInfo, 0, 10),
		maxRecentWindows: 10,
		maxRecentErrors:  10,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

// RecordWindow records one analyzed log window
func (c *Context) RecordWindow(info WindowInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info.Timestamp = time.Now()
	c.LastWindow = &info
	c.UpdatedAt = time.Now()
	c.ToolCalls++

	// Add to recent windows, maintaining max size
	c.RecentWindows = append(c.RecentWindows, info)
	if len(c.RecentWindows) > c.maxRecentWindows {
		c.RecentWindows = c.RecentWindows[1:]
	}
}

// RecordResource records access to an analysis artifact
func (c *Context) RecordResource(resourceType, id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastResources[resourceType] = &ResourceInfo{
		Type:      resourceType,
		ID:        id,
		Name:      name,
		Timestamp: time.Now(),
	}
	c.UpdatedAt = time.Now()
	c.ToolCalls++
}

// RecordError records an error encountered during tool execution
func (c *Context) RecordError(tool, message string, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.RecentErrors = append(c.RecentErrors, ErrorInfo{
		Tool:      tool,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	})
	if len(c.RecentErrors) > c.maxRecentErrors {
		c.RecentErrors = c.RecentErrors[1:]
	}
	c.UpdatedAt = time.Now()
}

// GetLastWindow returns the last window info (thread-safe copy)
func (c *Context) GetLastWindow() *WindowInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.LastWindow == nil {
		return nil
	}
	// Return a copy to avoid race conditions
	copy := *c.LastWindow
	return &copy
}

// GetLastResource returns the last resource of a given type
func (c *Context) GetLastResource(resourceType string) *ResourceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if info, ok := c.LastResources[resourceType]; ok {
		// Return a copy
		copy := *info
		return &copy
	}
	return nil
}

// GetRecentWindows returns recently analyzed windows (thread-safe copy)
func (c *Context) GetRecentWindows() []WindowInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]WindowInfo, len(c.RecentWindows))
	copy(result, c.RecentWindows)
	return result
}

// GetRecentErrors returns recent errors (thread-safe copy)
func (c *Context) GetRecentErrors() []ErrorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ErrorInfo, len(c.RecentErrors))
	copy(result, c.RecentErrors)
	return result
}

// HasRecentErrors returns true if there were recent errors
func (c *Context) HasRecentErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.RecentErrors) > 0
}

// GetStats returns session statistics
func (c *Context) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
		"tool_calls":      c.ToolCalls,
		"windows_count":   len(c.RecentWindows),
		"resources_count": len(c.LastResources),
		"errors_count":    len(c.RecentErrors),
		"age_seconds":     time.Since(c.CreatedAt).Seconds(),
	}
}

// Clear resets the session context
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastWindow = nil
	c.RecentWindows = make([]WindowInfo, 0, 10)
	c.LastResources = make(map[string]*ResourceInfo)
	c.RecentErrors = make([]ErrorInfo, 0, 10)
	c.UpdatedAt = time.Now()
	c.ToolCalls = 0
}

// SuggestNextTools suggests tools based on session context
func (c *Context) SuggestNextTools() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var suggestions []string

	// Windows with errors warrant deeper error analysis
	if c.LastWindow != nil && c.LastWindow.HasErrors {
		suggestions = append(suggestions, "cluster_error_signatures")
		suggestions = append(suggestions, "trace_causal_chain")
	}

	// After reviewing signature clusters, batch comparison often explains them
	if _, ok := c.LastResources["signature_cluster"]; ok {
		suggestions = append(suggestions, "compare_batch_outcomes")
	}

	// A causal chain points back at the surrounding timeline
	if _, ok := c.LastResources["causal_chain"]; ok {
		suggestions = append(suggestions, "build_event_timeline")
	}

	// If tools themselves failed, start over with a broad summary
	if len(c.RecentErrors) > 0 {
		suggestions = append(suggestions, "analyze_log_scope")
		suggestions = append(suggestions, "auto_analyze")
	}

	return suggestions
}
