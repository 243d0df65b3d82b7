package repository

import (
	"context"

	"github.com/oksasatya/account-service/internal/domain/readmodel"
)

// AccountCache stores read-model records with their email and role indexes.
// Entries may expire at any time; callers fall back to replay.
type AccountCache interface {
	Get(ctx context.Context, id string) (*readmodel.Account, bool, error)
	// Save writes next unless the stored record already has the same or a
	// newer version. Index entries that changed since the stored record are
	// moved in the same atomic step. It reports whether next was written.
	Save(ctx context.Context, next *readmodel.Account) (bool, error)
	MarkDeleted(ctx context.Context, id string) error
	IsDeleted(ctx context.Context, id string) (bool, error)
	IDByEmail(ctx context.Context, email string) (string, bool, error)
	AllIDs(ctx context.Context) ([]string, error)
	// IDsByRoles returns the union of the members of each role index.
	IDsByRoles(ctx context.Context, roles []string) ([]string, error)
}
