package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/units"
)

// QuantityInput is an absolute quantity write.
type QuantityInput struct {
	Type      model.QtyType
	Unit      string
	Value     float64
	Estimated bool
}

// AdjustInput is an incremental quantity change. Unit may be empty, in which
// case the delta is taken in the item's current display unit.
type AdjustInput struct {
	Delta float64
	Unit  string
}

// QuantityResult is the outcome of a quantity operation. Deleted reports
// that the item no longer exists, either because it was already gone or
// because this write drove its quantity to zero; it is a successful outcome,
// not an error. Callers must branch on it.
type QuantityResult struct {
	Deleted bool `json:"deleted"`
}

// SetQuantity overwrites an item's quantity fields. The estimated flag is
// stored as given; an explicit user write passes false. The base-unit value
// is kept alongside, and the initial base value is seeded on first write so
// progress bars have a stable denominator.
func SetQuantity(ctx context.Context, db *sql.DB, id string, in QuantityInput) (QuantityResult, error) {
	base := units.ToBase(in.Value, in.Unit, in.Type)

	res, err := db.ExecContext(ctx,
		`UPDATE items SET qty_type = ?, qty_unit = ?, qty_value = ?, qty_base = ?,
		     initial_qty_base = COALESCE(initial_qty_base, ?), qty_is_estimated = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Type, in.Unit, in.Value, base, base, in.Estimated, id,
	)
	if err != nil {
		return QuantityResult{}, fmt.Errorf("setting quantity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return QuantityResult{Deleted: true}, nil
	}
	if in.Value == 0 {
		// The delete-on-zero trigger fired during the update.
		return QuantityResult{Deleted: true}, nil
	}
	return QuantityResult{}, nil
}

// AdjustQuantity applies a delta to an item's quantity, converting between
// units when the delta's unit differs from the item's display unit. The new
// quantity is clamped at zero, and zero means the item is gone: the database
// trigger removes the row and the caller gets Deleted back.
//
// The read and the write are two separate statements with no lock between
// them. Concurrent adjusters can lose a delta; that is an accepted
// limitation. What does hold under any interleaving: the quantity never goes
// negative, and a quantity that reaches zero surfaces as Deleted to every
// caller, including ones whose row vanished mid-operation.
func AdjustQuantity(ctx context.Context, db *sql.DB, id string, in AdjustInput) (QuantityResult, error) {
	var qtyType model.QtyType
	var currentUnit string
	var current float64
	err := db.QueryRowContext(ctx,
		`SELECT qty_type, qty_unit, qty_value FROM items WHERE id = ?`, id,
	).Scan(&qtyType, &currentUnit, &current)
	if err == sql.ErrNoRows {
		// Adjusting an already-gone item is a no-op success: a concurrent
		// adjustment or an earlier zero-crossing may have removed it.
		return QuantityResult{Deleted: true}, nil
	}
	if err != nil {
		return QuantityResult{}, fmt.Errorf("reading current quantity: %w", err)
	}

	delta := in.Delta
	if in.Unit != "" && in.Unit != currentUnit {
		// Convert the magnitude through the base unit, then reapply the
		// sign. Conversion factors are all positive today, but signed-offset
		// unit systems would break a direct signed conversion.
		base := units.Between(math.Abs(in.Delta), in.Unit, units.BaseUnit(qtyType), qtyType)
		display := units.Between(base, units.BaseUnit(qtyType), currentUnit, qtyType)
		if in.Delta < 0 {
			delta = -display
		} else {
			delta = display
		}
	}

	newQty := math.Max(0, round4(current+delta))

	// A manual adjustment always supersedes an analyzer estimate.
	res, err := db.ExecContext(ctx,
		`UPDATE items SET qty_value = ?, qty_base = ?, qty_is_estimated = 0,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		newQty, units.ToBase(newQty, currentUnit, qtyType), id,
	)
	if err != nil {
		// A vanished row never surfaces here; that is the zero-rows case
		// below. An Exec error means the write itself failed.
		return QuantityResult{}, fmt.Errorf("adjusting quantity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if newQty == 0 {
			// The row vanished between our read and write: another writer
			// crossed zero first. For a zero-crossing write of our own that
			// is equivalent to success.
			return QuantityResult{Deleted: true}, nil
		}
		// The row disappeared under a non-zero write; this is not an
		// expected zero-crossing, so the caller hears about it.
		return QuantityResult{}, ErrNotFound
	}

	if newQty == 0 {
		return QuantityResult{Deleted: true}, nil
	}
	return QuantityResult{}, nil
}

func round4(n float64) float64 {
	return math.Round(n*10000) / 10000
}
