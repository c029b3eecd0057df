package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"FitCoach/internal/persona"
)

// CachedAssistant represents a remote assistant created for a persona
type CachedAssistant struct {
	ID        string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from everything that shapes a
// persona's remote configuration
func GenerateCacheKey(p persona.Persona) string {
	h := sha256.New()
	h.Write([]byte(p.Name))
	h.Write([]byte{0})
	h.Write([]byte(p.Instructions))
	h.Write([]byte{0})
	h.Write([]byte(p.Model))
	for _, tool := range p.Tools {
		h.Write([]byte{0})
		h.Write([]byte(tool))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// AssistantCache maps persona fingerprints to assistant ids for the life of
// the process.
type AssistantCache struct {
	entries sync.Map
}

// Load returns the cached assistant id for key.
func (c *AssistantCache) Load(key string) (string, bool) {
	if val, ok := c.entries.Load(key); ok {
		return val.(CachedAssistant).ID, true
	}
	return "", false
}

// Store records the assistant id for key.
func (c *AssistantCache) Store(key, id string) {
	c.entries.Store(key, CachedAssistant{ID: id, Timestamp: time.Now()})
}
