package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Storage is where an item is kept.
type Storage string

const (
	StorageCounter Storage = "counter"
	StorageFridge  Storage = "fridge"
	StorageFreezer Storage = "freezer"
)

// Stage is the human-facing freshness stage of an item.
type Stage string

const (
	StageFresh    Stage = "Fresh"
	StageEatSoon  Stage = "Eat Soon"
	StageLastCall Stage = "Last Call"
	StageSpoiled  Stage = "Spoiled"
)

// Status is the coarse freshness status used for filtering and alerts.
type Status string

const (
	StatusOK       Status = "ok"
	StatusSpoiling Status = "spoiling"
	StatusExpired  Status = "expired"
)

// QtyType is the measurement family of an item's quantity. It determines
// which unit conversion table applies.
type QtyType string

const (
	QtyCount  QtyType = "count"
	QtyWeight QtyType = "weight"
	QtyVolume QtyType = "volume"
	QtyBunch  QtyType = "bunch"
	QtyOther  QtyType = "other"
)

// ImagePathPending marks an item whose photo has not been attached yet.
const ImagePathPending = "pending"

// MaxDaysLeft bounds the days-left field on any write path.
const MaxDaysLeft = 365

// Item is a tracked produce/grocery item. DaysLeft is nil while the item is
// still being analyzed. A quantity of zero never exists as a persisted state:
// the database removes the row instead.
type Item struct {
	ID         string  `json:"id"`
	UserID     int64   `json:"user_id"`
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Store      string  `json:"store,omitempty"`
	Storage    Storage `json:"storage"`
	AcquiredAt string  `json:"acquired_at"` // YYYY-MM-DD, local calendar date
	ImagePath  string  `json:"image_path"`
	ImageMime  string  `json:"image_mime,omitempty"`

	InitialDaysLeft *int       `json:"initial_days_left"`
	DaysLeft        *int       `json:"days_left"`
	FreshnessStage  *Stage     `json:"freshness_stage"`
	Status          Status     `json:"status"`
	LastAnalyzedAt  *time.Time `json:"last_analyzed_at"`

	QtyType        QtyType  `json:"qty_type"`
	QtyUnit        string   `json:"qty_unit"`
	QtyValue       float64  `json:"qty_value"`
	QtyBase        *float64 `json:"qty_base"`
	InitialQtyBase *float64 `json:"initial_qty_base"`
	QtyIsEstimated bool     `json:"qty_is_estimated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counters summarizes the dashboard numbers for one user.
type Counters struct {
	ExpiringToday int `json:"expiring_today"`
	ThisWeek      int `json:"this_week"`
	Total         int `json:"total"`
}

// ClampStorage maps a free-form storage string (e.g. an analyzer guess) to a
// valid storage location, defaulting to the counter.
func ClampStorage(s Storage) Storage {
	switch s {
	case StorageCounter, StorageFridge, StorageFreezer:
		return s
	}
	return StorageCounter
}

// ClampQtyType maps a free-form quantity-type string to a valid type,
// defaulting to count.
func ClampQtyType(t QtyType) QtyType {
	switch t {
	case QtyCount, QtyWeight, QtyVolume, QtyBunch, QtyOther:
		return t
	}
	return QtyCount
}

// ClampDaysLeft bounds a day count to [0, MaxDaysLeft].
func ClampDaysLeft(d int) int {
	if d < 0 {
		return 0
	}
	if d > MaxDaysLeft {
		return MaxDaysLeft
	}
	return d
}

// ParseDaysLeft parses a user-entered days-left field. Blank means "unset"
// and yields (nil, nil). Numeric input is rounded and clamped to
// [0, MaxDaysLeft]; anything non-numeric is rejected.
func ParseDaysLeft(s string) (*int, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid days-left value %q", s)
	}
	d := ClampDaysLeft(int(math.Round(n)))
	return &d, nil
}

// ParseQuantity parses a user-entered quantity value. Blank and non-positive
// values yield (nil, nil), meaning "leave unchanged" on edit and "do not seed"
// on creation; zero in particular is blocked so a form entry cannot trip the
// delete-on-zero rule by accident. Non-numeric input is rejected.
func ParseQuantity(s string) (*float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity value %q", s)
	}
	if n <= 0 {
		return nil, nil
	}
	return &n, nil
}
