package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout keeps millisecond transition times intact in TEXT columns.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const selectColumns = `
		SELECT id, tenant_id, product_id, name, code, device_type, status, activated,
			last_online_time, last_offline_time, created_at, updated_at
		FROM devices`

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// ListOnline retrieves the devices whose last status is online.
	ListOnline(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// UpdateStatus records a status transition. Online sets last_online_time,
	// offline sets last_offline_time; the other column is left untouched.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, selectColumns+` ORDER BY name`)
}

// ListOnline retrieves all devices currently marked online.
func (r *SQLiteRepository) ListOnline(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, selectColumns+` WHERE status = ? ORDER BY name`, int(StatusOnline))
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, tenant_id, product_id, name, code, device_type, status, activated,
			last_online_time, last_offline_time, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		nullableString(device.TenantID),
		nullableString(device.ProductID),
		device.Name,
		nullableString(device.Code),
		string(device.Type),
		int(device.Status),
		boolToInt(device.Activated),
		nullableTime(device.LastOnlineTime),
		nullableTime(device.LastOfflineTime),
		device.CreatedAt.UTC().Format(timeLayout),
		device.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// UpdateStatus records a status transition at the given time.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}

	column := "last_offline_time"
	if status == StatusOnline {
		column = "last_online_time"
	}

	// column is one of two constants above.
	query := `UPDATE devices SET status = ?, ` + column + ` = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		int(status),
		at.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var tenantID, productID, code sql.NullString
	var lastOnline, lastOffline sql.NullString
	var deviceType, createdAt, updatedAt string
	var status, activated int

	err := scanner.Scan(
		&d.ID,
		&tenantID,
		&productID,
		&d.Name,
		&code,
		&deviceType,
		&status,
		&activated,
		&lastOnline,
		&lastOffline,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.TenantID = tenantID.String
	d.ProductID = productID.String
	d.Code = code.String
	d.Type = Type(deviceType)
	d.Status = Status(status)
	d.Activated = activated != 0
	d.LastOnlineTime = parseNullableTime(lastOnline)
	d.LastOfflineTime = parseNullableTime(lastOffline)

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(timeLayout, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(timeLayout, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &d, nil
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
