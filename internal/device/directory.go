package device

import (
	"context"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Directory is the device directory the ingest pipeline and bridges consult.
//
// The Repository is authoritative. The StatusCache holds a TTL-bounded copy
// of each device's status: reads prefer it and fall back to the repository on
// a miss, repopulating the cache on the way out.
//
// All public methods are thread-safe.
type Directory struct {
	repo   Repository
	cache  StatusCache
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

// NewDirectory creates a directory over repo. A nil cache selects a
// MemoryStatusCache; a non-positive ttl selects DefaultStatusTTL.
func NewDirectory(repo Repository, cache StatusCache, ttl time.Duration) *Directory {
	if cache == nil {
		cache = NewMemoryStatusCache()
	}
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &Directory{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// Get returns the directory record with the cached status overlaid. An entry
// older than the record's own transition time is ignored.
func (d *Directory) Get(ctx context.Context, id string) (*Device, error) {
	dev, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, ok, err := d.cache.Get(ctx, id)
	if err != nil {
		d.logger.Warn("status cache read failed", "device_id", id, "error", err)
		return dev, nil
	}
	if ok && !entry.ChangedAt.Before(dev.Entry().ChangedAt) {
		dev.Status = entry.Status
	}
	return dev, nil
}

// List returns every device in the directory.
func (d *Directory) List(ctx context.Context) ([]Device, error) {
	return d.repo.List(ctx)
}

// ListOnline returns the devices whose directory status is online.
func (d *Directory) ListOnline(ctx context.Context) ([]Device, error) {
	return d.repo.ListOnline(ctx)
}

// Create adds a device to the directory.
func (d *Directory) Create(ctx context.Context, dev *Device) error {
	if err := d.repo.Create(ctx, dev); err != nil {
		return err
	}
	d.logger.Info("device created", "device_id", dev.ID, "type", dev.Type)
	return nil
}

// Status returns the current status of a device. A cache hit is returned as
// is; on a miss the repository is read and the cache repopulated.
func (d *Directory) Status(ctx context.Context, id string) (StatusEntry, error) {
	entry, ok, err := d.cache.Get(ctx, id)
	if err != nil {
		d.logger.Warn("status cache read failed", "device_id", id, "error", err)
	}
	if ok {
		return entry, nil
	}

	dev, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return StatusEntry{}, err
	}

	entry = dev.Entry()
	if err := d.cache.Set(ctx, id, entry, d.ttl); err != nil {
		d.logger.Warn("status cache refill failed", "device_id", id, "error", err)
	}
	return entry, nil
}

// UpdateStatus records a status transition now: the repository first, then
// the cache. The two writes are not transactional. If the cache write fails
// the repository change stands and ErrStatusCache is returned; readers fall
// back to the repository once the old entry expires.
func (d *Directory) UpdateStatus(ctx context.Context, id string, status Status) (StatusEntry, error) {
	if !status.Valid() {
		return StatusEntry{}, fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}

	entry := StatusEntry{Status: status, ChangedAt: d.now().UTC().Truncate(time.Millisecond)}

	if err := d.repo.UpdateStatus(ctx, id, status, entry.ChangedAt); err != nil {
		return StatusEntry{}, err
	}
	if err := d.cache.Set(ctx, id, entry, d.ttl); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrStatusCache, err)
	}

	d.logger.Debug("device status updated", "device_id", id, "status", status.String())
	return entry, nil
}
