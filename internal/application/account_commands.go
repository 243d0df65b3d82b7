package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/readmodel"
	repo "github.com/oksasatya/account-service/internal/domain/repository"
	"github.com/oksasatya/account-service/internal/domain/service"
)

// AccountCommands runs the write side: load the aggregate from its log,
// check access and business rules, append what the aggregate raised with
// the loaded version as expectation, then hand the stored records to the
// projections.
type AccountCommands struct {
	Store      repo.EventStore
	Queries    *AccountQueries
	Hasher     PasswordHasher
	Authz      *Authorizer
	Dispatcher Dispatcher
	Audit      repo.AuditLogRepository
	Logger     *logrus.Logger
	NewID      func() string
	Now        func() time.Time
}

func NewAccountCommands(store repo.EventStore, queries *AccountQueries, hasher PasswordHasher, authz *Authorizer, dispatcher Dispatcher, audit repo.AuditLogRepository, logger *logrus.Logger) *AccountCommands {
	return &AccountCommands{
		Store:      store,
		Queries:    queries,
		Hasher:     hasher,
		Authz:      authz,
		Dispatcher: dispatcher,
		Audit:      audit,
		Logger:     logger,
		NewID:      uuid.NewString,
		Now:        time.Now,
	}
}

type CreateAccountInput struct {
	Name     string
	Email    string
	Password string
	Roles    []string
	Sources  []string
}

// UpdateAccountInput leaves nil fields untouched. A non-nil empty slice
// clears the set.
type UpdateAccountInput struct {
	Name     *string
	Email    *string
	Password *string
	Roles    []string
	Sources  []string
}

func (in UpdateAccountInput) patchesProfile() bool {
	return in.Name != nil || in.Email != nil || in.Roles != nil || in.Sources != nil
}

func (c *AccountCommands) Create(ctx context.Context, req *Requester, in CreateAccountInput) (*readmodel.Account, error) {
	if err := c.Authz.Authorize(req, ActionCreate, ""); err != nil {
		return nil, err
	}
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{entity.RoleUser}
	}
	if err := c.Authz.AuthorizeRoleAssignment(req, "", roles); err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	if _, taken, err := c.Queries.lookupEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: email already in use", errs.ErrConflict)
	}

	hash, err := c.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := entity.CreateAccount(c.NewID(), in.Name, email, hash, roles, in.Sources, entity.WithClock(c.Now))
	if err := c.commit(ctx, req, a, "create", map[string]any{"email": email, "roles": roles}); err != nil {
		return nil, err
	}
	return readmodel.FromAggregate(a), nil
}

// Update applies a partial change. A request that only carries a password
// records just the password change.
func (c *AccountCommands) Update(ctx context.Context, req *Requester, id string, in UpdateAccountInput) (*readmodel.Account, error) {
	if err := c.Authz.Authorize(req, ActionUpdate, id); err != nil {
		return nil, err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted() {
		return nil, errs.ErrInvalidState
	}

	self := req != nil && req.ID == id
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		in.Email = &email
		if email != a.Email() {
			if self {
				return nil, c.Authz.deny(req, ActionUpdate, id, "cannot change own email")
			}
			owner, taken, err := c.Queries.lookupEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if taken && owner != id {
				return nil, fmt.Errorf("%w: email already in use", errs.ErrConflict)
			}
		}
	}
	if in.Roles != nil {
		if self {
			return nil, c.Authz.deny(req, ActionUpdate, id, "cannot change own roles")
		}
		if err := c.Authz.AuthorizeRoleAssignment(req, id, in.Roles); err != nil {
			return nil, err
		}
	}

	if in.patchesProfile() || in.Password == nil {
		patch := entity.AccountPatch{Name: in.Name, Email: in.Email, Roles: in.Roles, Sources: in.Sources}
		if err := a.Update(patch); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		hash, err := c.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := a.ChangePassword(hash); err != nil {
			return nil, err
		}
	}

	meta := map[string]any{"name": in.Name != nil, "email": in.Email != nil, "roles": in.Roles, "sources": in.Sources, "password": in.Password != nil}
	if err := c.commit(ctx, req, a, "update", meta); err != nil {
		return nil, err
	}
	return readmodel.FromAggregate(a), nil
}

// Delete is idempotent; deleting an already deleted account records nothing.
func (c *AccountCommands) Delete(ctx context.Context, req *Requester, id string) error {
	if err := c.Authz.Authorize(req, ActionDelete, id); err != nil {
		return err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	a.Delete()
	return c.commit(ctx, req, a, "delete", nil)
}

func (c *AccountCommands) ChangePassword(ctx context.Context, req *Requester, id, password string) error {
	if err := c.Authz.Authorize(req, ActionChangePassword, id); err != nil {
		return err
	}
	return c.setPassword(ctx, req, id, password)
}

// ResetPassword sets a new password on behalf of a redeemed reset token.
// It runs without a requester.
func (c *AccountCommands) ResetPassword(ctx context.Context, id, password string) error {
	return c.setPassword(ctx, nil, id, password)
}

func (c *AccountCommands) setPassword(ctx context.Context, req *Requester, id, password string) error {
	a, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if a.IsDeleted() {
		return errs.ErrNotFound
	}
	hash, err := c.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.ChangePassword(hash); err != nil {
		return err
	}
	return c.commit(ctx, req, a, "change_password", nil)
}

func (c *AccountCommands) Approve(ctx context.Context, req *Requester, id string) (*readmodel.Account, error) {
	if err := c.Authz.Authorize(req, ActionApprove, id); err != nil {
		return nil, err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.CanApprove(a) {
		return nil, fmt.Errorf("%w: cannot approve an already approved, blocked or deleted account", errs.ErrDomainRule)
	}
	a.Approve()
	if err := c.commit(ctx, req, a, "approve", nil); err != nil {
		return nil, err
	}
	return readmodel.FromAggregate(a), nil
}

func (c *AccountCommands) Block(ctx context.Context, req *Requester, id string) (*readmodel.Account, error) {
	if err := c.Authz.Authorize(req, ActionBlock, id); err != nil {
		return nil, err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !service.CanBlock(a) {
		return nil, fmt.Errorf("%w: cannot block a blocked or deleted account", errs.ErrDomainRule)
	}
	a.Block()
	if err := c.commit(ctx, req, a, "block", nil); err != nil {
		return nil, err
	}
	return readmodel.FromAggregate(a), nil
}

// GrantRoles replaces the role set. Every grant is recorded, even when the
// set does not change.
func (c *AccountCommands) GrantRoles(ctx context.Context, req *Requester, id string, roles []string) (*readmodel.Account, error) {
	if err := c.Authz.Authorize(req, ActionGrantRoles, id); err != nil {
		return nil, err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted() {
		return nil, errs.ErrNotFound
	}
	if err := c.Authz.AuthorizeRoleAssignment(req, id, roles); err != nil {
		return nil, err
	}
	if !service.CanGrantRoles(a) {
		return nil, fmt.Errorf("%w: cannot grant roles to a blocked or deleted account", errs.ErrDomainRule)
	}
	a.GrantRoles(roles)
	if err := c.commit(ctx, req, a, "grant_roles", map[string]any{"roles": roles}); err != nil {
		return nil, err
	}
	return readmodel.FromAggregate(a), nil
}

func (c *AccountCommands) load(ctx context.Context, id string) (*entity.Account, error) {
	records, err := c.Store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(records) == 0 {
		return nil, errs.ErrNotFound
	}
	a, err := entity.LoadAccount(records, entity.WithClock(c.Now))
	if err != nil {
		return nil, fmt.Errorf("replay account %s: %w", id, err)
	}
	return a, nil
}

// commit appends the pending events, clears them and dispatches the stored
// records. It is a no-op when the aggregate raised nothing.
func (c *AccountCommands) commit(ctx context.Context, req *Requester, a *entity.Account, action string, meta map[string]any) error {
	pending := a.PendingEvents()
	if len(pending) == 0 {
		return nil
	}
	records, err := c.Store.Append(ctx, a.ID(), pending, a.Version())
	if err != nil {
		if errors.Is(err, errs.ErrConcurrencyConflict) && c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{"account_id": a.ID(), "expected_version": a.Version(), "action": action}).
				Warn("concurrent modification, command rejected")
		}
		return err
	}
	a.MarkCommitted()

	if c.Dispatcher != nil {
		c.Dispatcher.Dispatch(ctx, records)
	}
	c.audit(ctx, req, a.ID(), action, meta)
	return nil
}

func (c *AccountCommands) audit(ctx context.Context, req *Requester, id, action string, meta map[string]any) {
	var actor string
	if req != nil {
		actor = req.ID
	}
	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{"account_id": id, "action": action, "requester_id": actor}).Info("account command applied")
	}
	if c.Audit == nil {
		return
	}
	entry := entity.AuditLog{Entity: "account", EntityID: id, Action: action, ActorID: actor, Metadata: meta, CreatedAt: c.Now().UTC()}
	if err := c.Audit.Insert(ctx, entry); err != nil && c.Logger != nil {
		c.Logger.WithError(err).WithField("account_id", id).Warn("audit log insert failed")
	}
}
