package projection

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/domain/readmodel"
	"github.com/oksasatya/account-service/internal/domain/repository"
)

// Handler consumes stored records in per-aggregate version order.
type Handler interface {
	Name() string
	Handle(ctx context.Context, rec event.Record) error
}

// AccountProjector maintains the cached read model.
//
// Records carry their version, so an already applied record is skipped and a
// record arriving after a gap pulls the missing history from the store
// first. A record for an account that is not cached is dropped; the next
// read rebuilds it by replay. Deletions always set the deletion marker.
type AccountProjector struct {
	Cache  repository.AccountCache
	Store  repository.EventStore
	Logger *logrus.Logger
}

func NewAccountProjector(cache repository.AccountCache, store repository.EventStore, logger *logrus.Logger) *AccountProjector {
	return &AccountProjector{Cache: cache, Store: store, Logger: logger}
}

func (p *AccountProjector) Name() string { return "account_read_model" }

func (p *AccountProjector) Handle(ctx context.Context, rec event.Record) error {
	id := rec.AggregateID
	if rec.Type == event.TypeAccountDeleted {
		if err := p.Cache.MarkDeleted(ctx, id); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
	}

	cur, ok, err := p.Cache.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	var next *readmodel.Account
	switch {
	case !ok && rec.Type == event.TypeAccountCreated:
		next = &readmodel.Account{}
		if err := Apply(next, rec); err != nil {
			return err
		}
	case !ok:
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{"account_id": id, "version": rec.Version, "type": rec.Type}).
				Debug("read model absent, skipping event")
		}
		return nil
	case rec.Version <= cur.Version:
		return nil
	case rec.Version == cur.Version+1:
		next = cur.Clone()
		if err := Apply(next, rec); err != nil {
			return err
		}
	default:
		missing, err := p.Store.EventsAfter(ctx, id, cur.Version)
		if err != nil {
			return fmt.Errorf("catch up: %w", err)
		}
		next = cur.Clone()
		for _, m := range missing {
			if m.Version > rec.Version {
				break
			}
			if err := Apply(next, m); err != nil {
				return err
			}
		}
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{"account_id": id, "from": cur.Version, "to": next.Version}).
				Info("read model caught up from event log")
		}
	}

	if _, err := p.Cache.Save(ctx, next); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}
