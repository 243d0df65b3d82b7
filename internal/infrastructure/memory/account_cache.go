package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oksasatya/account-service/internal/domain/readmodel"
)

// AccountCache is a map-backed read model with the same index semantics as
// the Redis one.
type AccountCache struct {
	mu      sync.RWMutex
	records map[string]*readmodel.Account
	deleted map[string]bool
	emails  map[string]string
	roles   map[string]map[string]struct{}
	index   map[string]struct{}
}

func NewAccountCache() *AccountCache {
	return &AccountCache{
		records: map[string]*readmodel.Account{},
		deleted: map[string]bool{},
		emails:  map[string]string{},
		roles:   map[string]map[string]struct{}{},
		index:   map[string]struct{}{},
	}
}

func (c *AccountCache) Get(_ context.Context, id string) (*readmodel.Account, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (c *AccountCache) Save(_ context.Context, next *readmodel.Account) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.records[next.ID]; ok {
		if prev.Version >= next.Version {
			return false, nil
		}
		if prev.Email != next.Email && c.emails[prev.Email] == next.ID {
			delete(c.emails, prev.Email)
		}
		for _, r := range prev.Roles {
			if set, ok := c.roles[r]; ok {
				delete(set, next.ID)
			}
		}
	}
	c.records[next.ID] = next.Clone()
	c.index[next.ID] = struct{}{}
	if !next.Deleted {
		c.emails[next.Email] = next.ID
	}
	for _, r := range next.Roles {
		if c.roles[r] == nil {
			c.roles[r] = map[string]struct{}{}
		}
		c.roles[r][next.ID] = struct{}{}
	}
	if next.Deleted {
		c.deleted[next.ID] = true
	}
	return true, nil
}

func (c *AccountCache) MarkDeleted(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted[id] = true
	return nil
}

func (c *AccountCache) IsDeleted(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deleted[id], nil
}

func (c *AccountCache) IDByEmail(_ context.Context, email string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.emails[email]
	return id, ok, nil
}

func (c *AccountCache) AllIDs(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return keys(c.index), nil
}

func (c *AccountCache) IDsByRoles(_ context.Context, roles []string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	union := map[string]struct{}{}
	for _, r := range roles {
		for id := range c.roles[r] {
			union[id] = struct{}{}
		}
	}
	return keys(union), nil
}

// Evict drops a cached record but keeps its indexes, as a TTL expiry would.
func (c *AccountCache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
