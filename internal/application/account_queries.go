package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/domain/readmodel"
	repo "github.com/oksasatya/account-service/internal/domain/repository"
)

const emailScanPage = 200

// AccountSearcher resolves a free-text query to account ids, best match first.
type AccountSearcher interface {
	Search(ctx context.Context, query string, size int) ([]string, error)
}

// AccountQueries answers reads from the cached read model and falls back to
// replaying the event log when a record is not cached.
type AccountQueries struct {
	Store    repo.EventStore
	Cache    repo.AccountCache
	Authz    *Authorizer
	Searcher AccountSearcher
	Logger   *logrus.Logger
}

func NewAccountQueries(store repo.EventStore, cache repo.AccountCache, authz *Authorizer, searcher AccountSearcher, logger *logrus.Logger) *AccountQueries {
	return &AccountQueries{Store: store, Cache: cache, Authz: authz, Searcher: searcher, Logger: logger}
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// AccountSort names at most one effective sort key. When several are set the
// first of Name, Email, CreatedAt wins.
type AccountSort struct {
	Name      SortOrder
	Email     SortOrder
	CreatedAt SortOrder
}

type AccountFilter struct {
	IDs     []string
	Roles   []string
	Name    string
	Sources []string
	Sort    AccountSort
	Page    int
	PerPage int
}

type AccountPage struct {
	Items   []*readmodel.Account `json:"items"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

func (q *AccountQueries) FindByID(ctx context.Context, req *Requester, id string) (*readmodel.Account, error) {
	if err := q.Authz.Authorize(req, ActionRead, id); err != nil {
		return nil, err
	}
	return q.byID(ctx, id)
}

func (q *AccountQueries) FindByEmail(ctx context.Context, req *Requester, email string) (*readmodel.Account, error) {
	email = NormalizeEmail(email)
	id, found, err := q.lookupEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		// authorize against the collection so a missing account is not
		// distinguishable from a forbidden one
		if err := q.Authz.Authorize(req, ActionList, ""); err != nil {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	if err := q.Authz.Authorize(req, ActionRead, id); err != nil {
		return nil, err
	}
	return q.byID(ctx, id)
}

func (q *AccountQueries) FindAll(ctx context.Context, req *Requester, f AccountFilter) (*AccountPage, error) {
	if err := q.Authz.Authorize(req, ActionList, ""); err != nil {
		return nil, err
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}

	candidates := f.IDs
	if len(candidates) == 0 {
		all, err := q.Cache.AllIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		candidates = all
	}
	if len(f.Roles) > 0 {
		members, err := q.Cache.IDsByRoles(ctx, f.Roles)
		if err != nil {
			return nil, fmt.Errorf("list role members: %w", err)
		}
		candidates = intersect(candidates, members)
	}

	name := strings.ToLower(strings.TrimSpace(f.Name))
	items := make([]*readmodel.Account, 0, len(candidates))
	for _, id := range candidates {
		acc, err := q.byID(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// role indexes outlive expired records, so membership is checked again
		if len(f.Roles) > 0 && !overlaps(acc.Roles, f.Roles) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(acc.Name), name) {
			continue
		}
		if len(f.Sources) > 0 && !overlaps(acc.Sources, f.Sources) {
			continue
		}
		items = append(items, acc)
	}

	sortAccounts(items, f.Sort)

	page := &AccountPage{Total: len(items), Page: f.Page, PerPage: f.PerPage}
	start := (f.Page - 1) * f.PerPage
	if start >= len(items) {
		page.Items = []*readmodel.Account{}
		return page, nil
	}
	end := start + f.PerPage
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[start:end]
	return page, nil
}

// History returns the stored events of an account, deleted ones included.
func (q *AccountQueries) History(ctx context.Context, req *Requester, id string) ([]event.Record, error) {
	if err := q.Authz.Authorize(req, ActionHistory, id); err != nil {
		return nil, err
	}
	records, err := q.Store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(records) == 0 {
		return nil, errs.ErrNotFound
	}
	return records, nil
}

// Search runs a full-text query and returns the live accounts it matched.
func (q *AccountQueries) Search(ctx context.Context, req *Requester, query string, size int) ([]*readmodel.Account, error) {
	if err := q.Authz.Authorize(req, ActionList, ""); err != nil {
		return nil, err
	}
	out := []*readmodel.Account{}
	if q.Searcher == nil {
		return out, nil
	}
	ids, err := q.Searcher.Search(ctx, query, size)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	for _, id := range ids {
		acc, err := q.byID(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

func (q *AccountQueries) byID(ctx context.Context, id string) (*readmodel.Account, error) {
	deleted, err := q.Cache.IsDeleted(ctx, id)
	if err != nil {
		q.warn(err, id, "read deletion marker failed")
	}
	if deleted {
		return nil, errs.ErrNotFound
	}

	cached, ok, err := q.Cache.Get(ctx, id)
	if err != nil {
		q.warn(err, id, "read cached account failed")
	}
	if ok {
		if cached.Deleted {
			return nil, errs.ErrNotFound
		}
		return cached, nil
	}

	acc, err := q.replay(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Deleted {
		return nil, errs.ErrNotFound
	}
	return acc, nil
}

// replay rebuilds the read-model record from the log and caches it.
func (q *AccountQueries) replay(ctx context.Context, id string) (*readmodel.Account, error) {
	records, err := q.Store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(records) == 0 {
		return nil, errs.ErrNotFound
	}
	a, err := entity.LoadAccount(records)
	if err != nil {
		return nil, fmt.Errorf("replay account %s: %w", id, err)
	}
	acc := readmodel.FromAggregate(a)
	if _, err := q.Cache.Save(ctx, acc); err != nil {
		q.warn(err, id, "repopulate cache failed")
	}
	if acc.Deleted {
		if err := q.Cache.MarkDeleted(ctx, id); err != nil {
			q.warn(err, id, "repopulate deletion marker failed")
		}
	}
	if q.Logger != nil {
		q.Logger.WithFields(logrus.Fields{"account_id": id, "version": acc.Version}).Debug("account rebuilt from event log")
	}
	return acc, nil
}

// lookupEmail finds the live account currently using email. The cached
// index is tried first; on a miss the log is scanned newest first for
// events that set the address, and each candidate is confirmed by replay.
func (q *AccountQueries) lookupEmail(ctx context.Context, email string) (string, bool, error) {
	checked := map[string]bool{}
	confirm := func(id string) (bool, error) {
		if checked[id] {
			return false, nil
		}
		checked[id] = true
		acc, err := q.byID(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return acc.Email == email, nil
	}

	if id, ok, err := q.Cache.IDByEmail(ctx, email); err != nil {
		q.warn(err, "", "read email index failed")
	} else if ok {
		match, err := confirm(id)
		if err != nil {
			return "", false, err
		}
		if match {
			return id, true, nil
		}
	}

	for offset := 0; ; offset += emailScanPage {
		records, err := q.Store.EventsByType(ctx, emailScanPage, offset, event.TypeAccountCreated, event.TypeAccountUpdated)
		if err != nil {
			return "", false, fmt.Errorf("scan events by email: %w", err)
		}
		for _, rec := range records {
			if emailOf(rec.Event) != email {
				continue
			}
			match, err := confirm(rec.AggregateID)
			if err != nil {
				return "", false, err
			}
			if match {
				return rec.AggregateID, true, nil
			}
		}
		if len(records) < emailScanPage {
			return "", false, nil
		}
	}
}

func (q *AccountQueries) warn(err error, id, msg string) {
	if q.Logger != nil {
		q.Logger.WithError(err).WithField("account_id", id).Warn(msg)
	}
}

func emailOf(e event.Event) string {
	switch ev := e.(type) {
	case event.AccountCreated:
		return ev.Email
	case event.AccountUpdated:
		if ev.Email != nil {
			return *ev.Email
		}
	}
	return ""
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sortAccounts(items []*readmodel.Account, s AccountSort) {
	var less func(a, b *readmodel.Account) bool
	var order SortOrder
	switch {
	case s.Name != "":
		less = func(a, b *readmodel.Account) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
		order = s.Name
	case s.Email != "":
		less = func(a, b *readmodel.Account) bool { return a.Email < b.Email }
		order = s.Email
	default:
		less = func(a, b *readmodel.Account) bool { return a.CreatedAt.Before(b.CreatedAt) }
		order = s.CreatedAt
		if order == "" {
			order = SortDesc
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if order == SortDesc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func overlaps(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
