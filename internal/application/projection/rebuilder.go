package projection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/repository"
)

// Rebuilder replays the whole event log in global order through handlers.
// Handlers are expected to be idempotent, so a rebuild over a warm cache
// only fills what is missing.
type Rebuilder struct {
	Store     repository.EventStore
	Handlers  []Handler
	BatchSize int
	Logger    *logrus.Logger
}

func NewRebuilder(store repository.EventStore, batchSize int, logger *logrus.Logger, handlers ...Handler) *Rebuilder {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Rebuilder{Store: store, Handlers: handlers, BatchSize: batchSize, Logger: logger}
}

// Run returns the number of records replayed. A handler error stops the run.
func (r *Rebuilder) Run(ctx context.Context) (int, error) {
	var (
		pos   int64
		total int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := r.Store.ReadAll(ctx, pos, r.BatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		for _, rec := range batch {
			for _, h := range r.Handlers {
				if err := h.Handle(ctx, rec); err != nil {
					return total, err
				}
			}
			pos = rec.Position
			total++
		}
		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{"position": pos, "replayed": total}).Info("rebuild progress")
		}
	}
}
