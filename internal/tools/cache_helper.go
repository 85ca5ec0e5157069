package tools

import (
	"sync"

	"github.com/loglens/loglens-mcp-server/internal/cache"
)

// CacheHelper scopes the shared cache manager to the server's active
// identity. Over stdio there is a single user per process; the identity is
// set once at startup from the authenticated token.
type CacheHelper struct {
	manager    *cache.Manager
	mu         sync.RWMutex
	userID     string
	instanceID string
}

var (
	globalCacheHelper     *CacheHelper
	globalCacheHelperOnce sync.Once
)

// GetCacheHelper returns the process-wide cache helper.
func GetCacheHelper() *CacheHelper {
	globalCacheHelperOnce.Do(func() {
		globalCacheHelper = &CacheHelper{
			manager:    cache.GetManager(),
			userID:     "local",
			instanceID: "default",
		}
	})
	return globalCacheHelper
}

// SetIdentity rebinds the helper to an authenticated user and instance.
func (h *CacheHelper) SetIdentity(userID, instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userID != "" {
		h.userID = userID
	}
	if instanceID != "" {
		h.instanceID = instanceID
	}
}

func (h *CacheHelper) identity() (string, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userID, h.instanceID
}

// Get returns a cached rendered response for the tool and window key.
func (h *CacheHelper) Get(toolName, key string) (string, bool) {
	userID, instanceID := h.identity()
	v, ok := h.manager.Get(userID, instanceID, toolName, key)
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

// Set caches a rendered response under the tool's TTL.
func (h *CacheHelper) Set(toolName, key, text string) {
	userID, instanceID := h.identity()
	h.manager.Set(userID, instanceID, toolName, key, text)
}

// InvalidateAnalysis drops all cached analyzer responses for this identity.
func (h *CacheHelper) InvalidateAnalysis() int {
	userID, instanceID := h.identity()
	return h.manager.InvalidateAnalysis(userID, instanceID)
}

// Stats reports cache statistics for this identity.
func (h *CacheHelper) Stats() map[string]interface{} {
	userID, instanceID := h.identity()
	return h.manager.Stats(userID, instanceID)
}
