package ingest

import (
	"context"
	"hash/fnv"
	"sync"
)

// Defaults for NewDispatcher.
const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 8
)

// Processor handles one message to completion. *Router implements it.
type Processor interface {
	Route(ctx context.Context, msg Message) Kind
}

// Dispatcher is a bounded queue in front of a fixed worker pool.
//
// Messages are sharded by entity key (device or scene id), and each shard has
// exactly one worker, so messages on one path are processed in arrival order
// and never overlap. Different paths run concurrently.
type Dispatcher struct {
	proc    Processor
	shards  []chan Message
	metrics *Metrics
	logger  Logger

	// mu guards stopped and the shard channels against send-after-close.
	mu      sync.RWMutex
	stopped bool
	quit    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewDispatcher starts workers goroutines sharing queueSize slots in total.
// Non-positive values fall back to the defaults.
func NewDispatcher(proc Processor, queueSize, workers int, logger Logger, metrics *Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = noopLogger{}
	}

	perShard := queueSize / workers
	if perShard < 1 {
		perShard = 1
	}

	d := &Dispatcher{
		proc:    proc,
		shards:  make([]chan Message, workers),
		metrics: metrics,
		logger:  logger,
		quit:    make(chan struct{}),
	}
	for i := range d.shards {
		d.shards[i] = make(chan Message, perShard)
	}

	// Workers run on a background context; Stop drains rather than cancels.
	ctx := context.Background()
	for i := range d.shards {
		d.wg.Add(1)
		go d.worker(ctx, d.shards[i])
	}
	return d
}

// Submit enqueues msg on its shard, blocking while the shard is full.
// It returns ctx.Err() if ctx ends first and ErrDispatcherStopped after Stop.
func (d *Dispatcher) Submit(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	shard := d.shards[d.shardFor(msg.Topic)]
	select {
	case shard <- msg:
		d.metrics.queued(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrDispatcherStopped
	}
}

// Stop refuses new messages, lets the workers drain what is queued, and
// waits for them to finish. Safe to call more than once.
func (d *Dispatcher) Stop() {
	// Wake blocked Submit calls before taking the write lock they hold.
	d.once.Do(func() { close(d.quit) })

	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.shards {
			close(ch)
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("ingest dispatcher stopped")
}

// Workers returns the shard count.
func (d *Dispatcher) Workers() int {
	return len(d.shards)
}

func (d *Dispatcher) worker(ctx context.Context, in <-chan Message) {
	defer d.wg.Done()
	for msg := range in {
		d.metrics.queued(-1)
		d.proc.Route(ctx, msg)
	}
}

// shardFor hashes the routing key so every message for one device or scene
// lands on the same worker.
func (d *Dispatcher) shardFor(topic string) int {
	key := Classify(topic).EntityID
	if key == "" {
		key = topic
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}
