package projection

import (
	"context"
	"expvar"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/event"
)

type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

const syncTimeout = 10 * time.Second

var (
	projected = expvar.NewMap("projection_events")
	failed    = expvar.NewMap("projection_failures")
)

// Dispatcher fans stored records out to the projection handlers.
//
// Records are assigned to a partition by an FNV-1a hash of the aggregate id,
// so every record of one account is handled by the same partition in the
// order it was dispatched. In async mode each partition owns a goroutine and
// a buffered queue; in sync mode the caller runs the handlers while holding
// the partition lock.
type Dispatcher struct {
	mode     Mode
	handlers []Handler
	logger   *logrus.Logger

	locks  []sync.Mutex
	queues []chan event.Record

	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(mode Mode, partitions, buffer int, logger *logrus.Logger, handlers ...Handler) *Dispatcher {
	if partitions <= 0 {
		partitions = 1
	}
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mode:     mode,
		handlers: handlers,
		logger:   logger,
		locks:    make([]sync.Mutex, partitions),
		ctx:      ctx,
		cancel:   cancel,
	}
	if mode == ModeAsync {
		d.queues = make([]chan event.Record, partitions)
		for i := range d.queues {
			d.queues[i] = make(chan event.Record, buffer)
			d.wg.Add(1)
			go d.run(d.queues[i])
		}
	}
	return d
}

func (d *Dispatcher) partition(aggregateID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(aggregateID))
	return int(h.Sum32() % uint32(len(d.locks)))
}

// Dispatch never fails: handler errors are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, records []event.Record) {
	if len(records) == 0 {
		return
	}
	if d.mode != ModeAsync {
		// the records are already committed, a caller that went away must
		// not leave the read model behind
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
		defer cancel()
		p := d.partition(records[0].AggregateID)
		d.locks[p].Lock()
		defer d.locks[p].Unlock()
		for _, rec := range records {
			d.handle(ctx, rec)
		}
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WithField("account_id", records[0].AggregateID).Warn("dispatcher closed, events not projected")
		return
	}
	for _, rec := range records {
		d.queues[d.partition(rec.AggregateID)] <- rec
	}
}

func (d *Dispatcher) run(q <-chan event.Record) {
	defer d.wg.Done()
	for rec := range q {
		d.handle(d.ctx, rec)
	}
}

func (d *Dispatcher) handle(ctx context.Context, rec event.Record) {
	for _, h := range d.handlers {
		if err := h.Handle(ctx, rec); err != nil {
			failed.Add(h.Name(), 1)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"projection": h.Name(),
				"account_id": rec.AggregateID,
				"version":    rec.Version,
				"type":       rec.Type,
			}).Error("projection failed")
			continue
		}
		projected.Add(h.Name(), 1)
	}
}

// Close drains the queues and stops the partition workers.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
		d.mu.Unlock()
		d.wg.Wait()
		d.cancel()
	})
}
