// Package device provides the Device Directory: the record of every known
// device and its online/offline status.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                     Device Directory                      │
//	│                                                           │
//	│  ┌──────────────────┐   ┌──────────────────┐              │
//	│  │    Directory     │──▶│    Repository    │  (SQLite)    │
//	│  │  (directory.go)  │   │  (repository.go) │  authoritative
//	│  │                  │   └──────────────────┘              │
//	│  │                  │   ┌──────────────────┐              │
//	│  │                  │──▶│   StatusCache    │  (Redis or   │
//	│  └──────────────────┘   │    (cache.go)    │   in-memory) │
//	│                         └──────────────────┘  TTL 1h      │
//	└──────────────────────────────────────────────────────────┘
//
// A status update writes the repository first (status plus exactly one of
// last_online_time / last_offline_time), then the cache. The cache stores
// status and transition time as one entry. Reads prefer the cache and fall
// back to the repository when the entry is missing or expired.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	dir := device.NewDirectory(repo, statusCache, cfg.GetStatusTTL())
//	dir.SetLogger(log)
//
//	entry, err := dir.UpdateStatus(ctx, "dev-1", device.StatusOnline)
//	status, err := dir.Status(ctx, "dev-1")
package device
