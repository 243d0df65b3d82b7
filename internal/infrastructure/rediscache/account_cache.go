package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/account-service/internal/domain/readmodel"
)

// Key layout
//
//	account:{id}           JSON record
//	account:{id}:deleted   logical deletion marker
//	account:email:{email}  id owning the email
//	accounts:index         set of every projected id
//	accounts:role:{role}   set of ids holding the role
func keyAccount(id string) string  { return "account:" + id }
func keyDeleted(id string) string  { return "account:" + id + ":deleted" }
func keyEmail(email string) string { return "account:email:" + email }
func keyRole(role string) string   { return "accounts:role:" + role }

const keyIndex = "accounts:index"

// delIfOwner removes an email key only while it still points at the account.
var delIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// AccountCache is the Redis read model. Records and email keys expire after
// ttl; index sets and deletion markers do not.
type AccountCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewAccountCache(rdb redis.UniversalClient, ttl time.Duration) *AccountCache {
	return &AccountCache{rdb: rdb, ttl: ttl}
}

func (c *AccountCache) Get(ctx context.Context, id string) (*readmodel.Account, bool, error) {
	return decode(c.rdb.Get(ctx, keyAccount(id)))
}

func decode(cmd *redis.StringCmd) (*readmodel.Account, bool, error) {
	b, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec readmodel.Account
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

const saveRetries = 5

// Save watches the record key so that a concurrent writer forces a retry
// against the fresh record.
func (c *AccountCache) Save(ctx context.Context, next *readmodel.Account) (bool, error) {
	b, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	key := keyAccount(next.ID)

	var written bool
	txf := func(tx *redis.Tx) error {
		written = false
		prev, ok, err := decode(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if ok && prev.Version >= next.Version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ok {
				if prev.Email != next.Email {
					delIfOwner.Eval(ctx, pipe, []string{keyEmail(prev.Email)}, next.ID)
				}
				for _, r := range removed(prev.Roles, next.Roles) {
					pipe.SRem(ctx, keyRole(r), next.ID)
				}
			}
			pipe.Set(ctx, key, b, c.ttl)
			// a deleted account never claims its email back from a live one
			if !next.Deleted {
				pipe.Set(ctx, keyEmail(next.Email), next.ID, c.ttl)
			}
			pipe.SAdd(ctx, keyIndex, next.ID)
			for _, r := range next.Roles {
				pipe.SAdd(ctx, keyRole(r), next.ID)
			}
			if next.Deleted {
				pipe.Set(ctx, keyDeleted(next.ID), "1", 0)
			}
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}

	for i := 0; i < saveRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return written, err
	}
	return false, redis.TxFailedErr
}

func (c *AccountCache) MarkDeleted(ctx context.Context, id string) error {
	return c.rdb.Set(ctx, keyDeleted(id), "1", 0).Err()
}

func (c *AccountCache) IsDeleted(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, keyDeleted(id)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *AccountCache) IDByEmail(ctx context.Context, email string) (string, bool, error) {
	id, err := c.rdb.Get(ctx, keyEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *AccountCache) AllIDs(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, keyIndex).Result()
}

func (c *AccountCache) IDsByRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	keys := make([]string, len(roles))
	for i, r := range roles {
		keys[i] = keyRole(r)
	}
	return c.rdb.SUnion(ctx, keys...).Result()
}

func removed(prev, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, r := range next {
		keep[r] = struct{}{}
	}
	var out []string
	for _, r := range prev {
		if _, ok := keep[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}
