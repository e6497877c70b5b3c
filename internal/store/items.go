package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pantrylog/pantrylog/internal/freshness"
	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/units"
)

// itemColumns is the selection used by every item read (the photo blob is
// fetched separately).
const itemColumns = `id, user_id, name, label, store, storage, acquired_at,
	image_path, image_mime, initial_days_left, days_left, freshness_stage,
	status, last_analyzed_at, qty_type, qty_unit, qty_value, qty_base,
	initial_qty_base, qty_is_estimated, created_at, updated_at`

// CreateItemInput carries the fields for a new item. Zero values get the
// same defaults the original record store applied: label falls back to the
// name, storage to the counter, the acquisition date to today, and the image
// path to the pending sentinel.
type CreateItemInput struct {
	UserID         int64
	Name           string
	Label          string
	Store          string
	Storage        model.Storage
	AcquiredAt     string // YYYY-MM-DD
	DaysLeft       *int   // seeds both days_left and initial_days_left
	ImagePath      string
	LastAnalyzedAt *time.Time
	Quantity       *QuantityInput // nil leaves the schema defaults (1 ea, count)
}

// CreateItem inserts a new item and returns it.
func CreateItem(ctx context.Context, db *sql.DB, in CreateItemInput) (*model.Item, error) {
	if in.Name == "" {
		in.Name = "Unlabeled"
	}
	if in.Label == "" {
		in.Label = in.Name
	}
	if in.Storage == "" {
		in.Storage = model.StorageCounter
	}
	if in.AcquiredAt == "" {
		in.AcquiredAt = time.Now().Format("2006-01-02")
	}
	if in.ImagePath == "" {
		in.ImagePath = model.ImagePathPending
	}

	id := uuid.NewString()
	stage := freshness.StageFor(in.DaysLeft, in.DaysLeft)
	status := freshness.StatusFor(stage)

	var stageVal any
	if stage != nil {
		stageVal = string(*stage)
	}

	if in.Quantity != nil {
		base := units.ToBase(in.Quantity.Value, in.Quantity.Unit, in.Quantity.Type)
		_, err := db.ExecContext(ctx,
			`INSERT INTO items (id, user_id, name, label, store, storage, acquired_at,
			     image_path, initial_days_left, days_left, freshness_stage, status,
			     last_analyzed_at, qty_type, qty_unit, qty_value, qty_base,
			     initial_qty_base, qty_is_estimated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.UserID, in.Name, in.Label, nullString(in.Store), in.Storage, in.AcquiredAt,
			in.ImagePath, in.DaysLeft, in.DaysLeft, stageVal, status,
			in.LastAnalyzedAt, in.Quantity.Type, in.Quantity.Unit, in.Quantity.Value, base,
			base, in.Quantity.Estimated,
		)
		if err != nil {
			return nil, fmt.Errorf("creating item: %w", err)
		}
	} else {
		_, err := db.ExecContext(ctx,
			`INSERT INTO items (id, user_id, name, label, store, storage, acquired_at,
			     image_path, initial_days_left, days_left, freshness_stage, status,
			     last_analyzed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.UserID, in.Name, in.Label, nullString(in.Store), in.Storage, in.AcquiredAt,
			in.ImagePath, in.DaysLeft, in.DaysLeft, stageVal, status,
			in.LastAnalyzedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("creating item: %w", err)
		}
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or (nil, nil) when it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListFilter narrows and orders an item listing.
type ListFilter struct {
	UserID   int64
	Query    string // matches name or store, case-insensitive substring
	Storage  []model.Storage
	Stage    []model.Stage
	Status   []model.Status
	Sort     string // recent (default) | days_left_asc | days_left_desc | az
	Page     int    // 1-based
	PageSize int
}

// DefaultPageSize is the listing page size when the caller does not choose one.
const DefaultPageSize = 24

// ListResult is one page of a filtered listing.
type ListResult struct {
	Items     []model.Item `json:"items"`
	Total     int          `json:"total"`
	Page      int          `json:"page"`
	PageSize  int          `json:"page_size"`
	PageCount int          `json:"page_count"`
}

// ListItems returns a filtered, sorted, paginated page of a user's items.
func ListItems(ctx context.Context, db *sql.DB, f ListFilter) (*ListResult, error) {
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}

	where := []string{"user_id = ?"}
	args := []any{f.UserID}

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		where = append(where, `(name LIKE ? ESCAPE '\' OR store LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(f.Storage) > 0 {
		where = append(where, inClause("storage", len(f.Storage)))
		for _, s := range f.Storage {
			args = append(args, s)
		}
	}
	if len(f.Stage) > 0 {
		where = append(where, inClause("freshness_stage", len(f.Stage)))
		for _, s := range f.Stage {
			args = append(args, s)
		}
	}
	if len(f.Status) > 0 {
		where = append(where, inClause("status", len(f.Status)))
		for _, s := range f.Status {
			args = append(args, s)
		}
	}

	cond := strings.Join(where, " AND ")

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE `+cond, args...,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	// SQLite sorts NULLs first ascending and last descending, which matches
	// the intended "unknown freshness floats to the top" ordering.
	var order string
	switch f.Sort {
	case "days_left_asc":
		order = "days_left ASC, created_at DESC"
	case "days_left_desc":
		order = "days_left DESC, created_at DESC"
	case "az":
		order = "name COLLATE NOCASE ASC"
	default:
		order = "created_at DESC"
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + cond +
		` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResult{
		Items:     items,
		Total:     total,
		Page:      f.Page,
		PageSize:  f.PageSize,
		PageCount: (total + f.PageSize - 1) / f.PageSize,
	}, nil
}

// ListTracked returns every item (across users) with a known days-left value.
// Used by the nightly freshness sweep.
func ListTracked(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE days_left IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tracked items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateFieldsInput carries the descriptive fields of an item edit.
type UpdateFieldsInput struct {
	Name       string
	Label      string
	Store      string
	Storage    model.Storage
	AcquiredAt string
}

// UpdateItemFields updates an item's descriptive fields. Freshness and
// quantity are written through their own operations.
func UpdateItemFields(ctx context.Context, db *sql.DB, id string, in UpdateFieldsInput) error {
	if in.Label == "" {
		in.Label = in.Name
	}
	res, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, label = ?, store = ?, storage = ?, acquired_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.Label, nullString(in.Store), in.Storage, in.AcquiredAt, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDaysLeft writes an item's days-left and rederives its stage and status.
// A nil value returns the item to the "unknown / still analyzing" state.
func SetDaysLeft(ctx context.Context, db *sql.DB, id string, days *int) error {
	var initial *int
	err := db.QueryRowContext(ctx,
		`SELECT initial_days_left FROM items WHERE id = ?`, id,
	).Scan(&initial)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading shelf-life estimate: %w", err)
	}

	stage := freshness.StageFor(initial, days)
	status := freshness.StatusFor(stage)
	var stageVal any
	if stage != nil {
		stageVal = string(*stage)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE items SET days_left = ?, freshness_stage = ?, status = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		days, stageVal, status, id,
	)
	if err != nil {
		return fmt.Errorf("setting days left: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes an item permanently.
func DeleteItem(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BuildImagePath returns the canonical storage path for an item's photo.
func BuildImagePath(userID int64, itemID string) string {
	return fmt.Sprintf("%d/%s.jpg", userID, itemID)
}

// SetItemImage stores an item's photo and flips its image path from the
// pending sentinel to the canonical path.
func SetItemImage(ctx context.Context, db *sql.DB, id string, data []byte, mime string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?,
		     image_path = CAST(user_id AS TEXT) || '/' || id || '.jpg',
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		data, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemImage returns an item's photo and MIME type, or (nil, "", nil) when
// no photo is attached.
func GetItemImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// SetLastAnalyzed records that the vision analysis ran for an item.
func SetLastAnalyzed(ctx context.Context, db *sql.DB, id string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET last_analyzed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("setting last analyzed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCounters returns the dashboard counters for one user.
func GetCounters(ctx context.Context, db *sql.DB, userID int64) (*model.Counters, error) {
	c := &model.Counters{}
	err := db.QueryRowContext(ctx,
		`SELECT
		     COUNT(CASE WHEN days_left = 0 THEN 1 END),
		     COUNT(CASE WHEN days_left BETWEEN 1 AND 7 THEN 1 END),
		     COUNT(*)
		 FROM items WHERE user_id = ?`, userID,
	).Scan(&c.ExpiringToday, &c.ThisWeek, &c.Total)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var store, imageMime, stage sql.NullString
	var initialDays, daysLeft sql.NullInt64
	var qtyBase, initialQtyBase sql.NullFloat64
	var lastAnalyzed sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserID, &item.Name, &item.Label, &store, &item.Storage,
		&item.AcquiredAt, &item.ImagePath, &imageMime, &initialDays, &daysLeft,
		&stage, &item.Status, &lastAnalyzed, &item.QtyType, &item.QtyUnit,
		&item.QtyValue, &qtyBase, &initialQtyBase, &item.QtyIsEstimated,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Store = store.String
	item.ImageMime = imageMime.String
	if stage.Valid {
		s := model.Stage(stage.String)
		item.FreshnessStage = &s
	}
	if initialDays.Valid {
		d := int(initialDays.Int64)
		item.InitialDaysLeft = &d
	}
	if daysLeft.Valid {
		d := int(daysLeft.Int64)
		item.DaysLeft = &d
	}
	if qtyBase.Valid {
		item.QtyBase = &qtyBase.Float64
	}
	if initialQtyBase.Valid {
		item.InitialQtyBase = &initialQtyBase.Float64
	}
	if lastAnalyzed.Valid {
		item.LastAnalyzedAt = &lastAnalyzed.Time
	}
	return item, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func inClause(column string, n int) string {
	return column + " IN (?" + strings.Repeat(", ?", n-1) + ")"
}
