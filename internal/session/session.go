// Package session tracks the authenticated operator identity and what
// it is allowed to do.
package session

import "sync"

// Roles understood by the backend.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleViewer     = "viewer"
)

// Context holds the current operator session.
type Context struct {
	mu     sync.RWMutex
	role   string
	apiKey string
}

// NewContext creates a session context for the given role and API key.
func NewContext(role, apiKey string) *Context {
	return &Context{role: role, apiKey: apiKey}
}

// Role returns the operator role.
func (c *Context) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// APIKey returns the bearer token used for backend calls.
func (c *Context) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// CanEdit reports whether the operator may mutate parcels.
func (c *Context) CanEdit() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role == RoleAdmin || c.role == RoleDispatcher
}

// Update replaces the session identity, e.g. after a re-login.
func (c *Context) Update(role, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	c.apiKey = apiKey
}
