package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// jwtSecretKey is the settings row holding the token signing secret.
const jwtSecretKey = "jwt_secret"

// GetJWTSecret returns the token signing secret, minting and persisting one
// on first use. INSERT OR IGNORE plus a read-back keeps concurrent startups
// on a single secret.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	candidate, err := newSecret()
	if err != nil {
		return "", err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		jwtSecretKey, candidate,
	); err != nil {
		return "", fmt.Errorf("storing %s: %w", jwtSecretKey, err)
	}

	var secret string
	if err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, jwtSecretKey,
	).Scan(&secret); err != nil {
		return "", fmt.Errorf("reading %s: %w", jwtSecretKey, err)
	}
	return secret, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
