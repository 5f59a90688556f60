package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a paired device does not exist in the store.
var ErrNotFound = errors.New("database: device not found")

// PairedDevice is a device this bridge network has paired with. Presence in
// the store makes the device eligible for ownership claims on startup
// without waiting for a peer's retained discovery message.
type PairedDevice struct {
	// Address is the stable hardware address (colon-separated).
	Address string

	// Name is the device-reported name at pairing time, if any.
	Name string

	// PairedAt is when the device was first promoted from a pairing candidate.
	PairedAt time.Time

	// LastSeen is the last time this instance observed the device
	// (advertisement, poll cycle, or peer claim).
	LastSeen time.Time
}

// UpsertPairedDevice inserts a paired device or refreshes its name and
// last-seen timestamp if it already exists.
func (db *DB) UpsertPairedDevice(ctx context.Context, dev PairedDevice) error {
	if dev.Address == "" {
		return fmt.Errorf("upserting paired device: address is required")
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO paired_devices (address, name, paired_at, last_seen)
VALUES (?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
    name = CASE WHEN excluded.name != '' THEN excluded.name ELSE paired_devices.name END,
    last_seen = excluded.last_seen`,
		dev.Address, dev.Name, dev.PairedAt.UTC(), dev.LastSeen.UTC())
	if err != nil {
		return fmt.Errorf("upserting paired device %s: %w", dev.Address, err)
	}
	return nil
}

// TouchPairedDevice updates only the last-seen timestamp for a device.
// Returns ErrNotFound if the device is not paired.
func (db *DB) TouchPairedDevice(ctx context.Context, address string, seen time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE paired_devices SET last_seen = ? WHERE address = ?`,
		seen.UTC(), address)
	if err != nil {
		return fmt.Errorf("touching paired device %s: %w", address, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching paired device %s: %w", address, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPairedDevice returns a single paired device by address.
// Returns ErrNotFound if the device is not paired.
func (db *DB) GetPairedDevice(ctx context.Context, address string) (PairedDevice, error) {
	var dev PairedDevice
	err := db.QueryRowContext(ctx, `
SELECT address, name, paired_at, last_seen FROM paired_devices WHERE address = ?`,
		address).Scan(&dev.Address, &dev.Name, &dev.PairedAt, &dev.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return PairedDevice{}, ErrNotFound
	}
	if err != nil {
		return PairedDevice{}, fmt.Errorf("getting paired device %s: %w", address, err)
	}
	return dev, nil
}

// ListPairedDevices returns all paired devices ordered by pairing time.
func (db *DB) ListPairedDevices(ctx context.Context) ([]PairedDevice, error) {
	rows, err := db.QueryContext(ctx, `
SELECT address, name, paired_at, last_seen FROM paired_devices ORDER BY paired_at`)
	if err != nil {
		return nil, fmt.Errorf("listing paired devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var devices []PairedDevice
	for rows.Next() {
		var dev PairedDevice
		if err := rows.Scan(&dev.Address, &dev.Name, &dev.PairedAt, &dev.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning paired device: %w", err)
		}
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating paired devices: %w", err)
	}
	return devices, nil
}

// DeletePairedDevice removes a device from the store (unpairing).
// Deleting an unknown device is not an error.
func (db *DB) DeletePairedDevice(ctx context.Context, address string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM paired_devices WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("deleting paired device %s: %w", address, err)
	}
	return nil
}
