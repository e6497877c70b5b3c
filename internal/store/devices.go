package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Device is a registered push-notification endpoint.
type Device struct {
	PushEndpoint string    `json:"push_endpoint"`
	UserID       int64     `json:"user_id"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterDevice upserts a push endpoint for a user. Re-registering an
// existing endpoint reassigns it (a browser profile may log into a different
// account).
func RegisterDevice(ctx context.Context, db *sql.DB, userID int64, endpoint, userAgent string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO devices (push_endpoint, user_id, user_agent) VALUES (?, ?, ?)
		 ON CONFLICT (push_endpoint) DO UPDATE SET user_id = ?, user_agent = ?`,
		endpoint, userID, nullString(userAgent), userID, nullString(userAgent),
	)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	return nil
}

// UnregisterDevice removes a push endpoint. Removing an unknown endpoint is
// a no-op.
func UnregisterDevice(ctx context.Context, db *sql.DB, endpoint string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM devices WHERE push_endpoint = ?`, endpoint,
	)
	if err != nil {
		return fmt.Errorf("unregistering device: %w", err)
	}
	return nil
}

// ListDevices returns a user's registered push endpoints.
func ListDevices(ctx context.Context, db *sql.DB, userID int64) ([]Device, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT push_endpoint, user_id, user_agent, created_at
		 FROM devices WHERE user_id = ? ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var ua sql.NullString
		if err := rows.Scan(&d.PushEndpoint, &d.UserID, &ua, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.UserAgent = ua.String
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
