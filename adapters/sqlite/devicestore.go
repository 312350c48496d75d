package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/ports"
)

// DeviceStore implements ports.DeviceStore using SQLite.
// Updates are conditioned on the record version so concurrent
// read-modify-write sequences cannot silently overwrite each other.
type DeviceStore struct {
	db *DB
}

// NewDeviceStore creates a new SQLite device store.
func NewDeviceStore(db *DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `
	device_id, tier, paid_until, purchase_token, messages_used,
	window_reset_at, free_tier_disabled, created_at, updated_at, version`

// Get retrieves a record by device ID.
func (s *DeviceStore) Get(ctx context.Context, deviceID string) (entitlement.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE device_id = ?
	`, deviceID)
	return scanDevice(row)
}

// GetByPurchaseToken retrieves the record correlated to a purchase token.
func (s *DeviceStore) GetByPurchaseToken(ctx context.Context, token string) (entitlement.Record, error) {
	if token == "" {
		return entitlement.Record{}, ports.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE purchase_token = ?
	`, token)
	return scanDevice(row)
}

// Create stores a new record at version 1.
func (s *DeviceStore) Create(ctx context.Context, r entitlement.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (
			device_id, tier, paid_until, purchase_token, messages_used,
			window_reset_at, free_tier_disabled, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, r.DeviceID, string(r.Tier), nullTime(r.PaidUntil), r.PurchaseToken,
		r.MessagesUsed, zeroableTime(r.WindowResetAt), r.FreeTierDisabled,
		r.CreatedAt, r.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// Update writes the record conditioned on its version, bumping it on
// success. Returns ErrVersionConflict when a concurrent writer got there
// first.
func (s *DeviceStore) Update(ctx context.Context, r entitlement.Record) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET tier = ?, paid_until = ?, purchase_token = ?, messages_used = ?,
		    window_reset_at = ?, free_tier_disabled = ?, updated_at = ?,
		    version = version + 1
		WHERE device_id = ? AND version = ?
	`, string(r.Tier), nullTime(r.PaidUntil), r.PurchaseToken, r.MessagesUsed,
		zeroableTime(r.WindowResetAt), r.FreeTierDisabled, r.UpdatedAt,
		r.DeviceID, r.Version)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either the device is gone or the version is stale.
		if _, getErr := s.Get(ctx, r.DeviceID); errors.Is(getErr, ports.ErrNotFound) {
			return ports.ErrNotFound
		}
		return ports.ErrVersionConflict
	}
	return nil
}

// Count returns the total number of device records.
func (s *DeviceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&n)
	return n, err
}

// List returns records with pagination, newest first.
func (s *DeviceStore) List(ctx context.Context, limit, offset int) ([]entitlement.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY created_at DESC, device_id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []entitlement.Record
	for rows.Next() {
		r, err := scanDeviceRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row *sql.Row) (entitlement.Record, error) {
	r, err := scanDeviceRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entitlement.Record{}, ports.ErrNotFound
	}
	return r, err
}

func scanDeviceRows(s scanner) (entitlement.Record, error) {
	var (
		r           entitlement.Record
		tier        string
		paidUntil   sql.NullTime
		windowReset sql.NullTime
	)
	err := s.Scan(&r.DeviceID, &tier, &paidUntil, &r.PurchaseToken,
		&r.MessagesUsed, &windowReset, &r.FreeTierDisabled,
		&r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		return entitlement.Record{}, err
	}

	r.Tier = entitlement.Tier(tier)
	if paidUntil.Valid {
		t := paidUntil.Time.UTC()
		r.PaidUntil = &t
	}
	if windowReset.Valid {
		r.WindowResetAt = windowReset.Time.UTC()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

// nullTime converts an optional time to its SQL representation.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// zeroableTime stores the zero time as NULL so a cleared free window
// round-trips as zero.
func zeroableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// Ensure interface compliance.
var _ ports.DeviceStore = (*DeviceStore)(nil)
