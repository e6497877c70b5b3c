package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pantrylog/pantrylog/internal/db"
	"github.com/pantrylog/pantrylog/internal/model"
)

func weighedItem(t *testing.T, database *sql.DB, userID int64, unit string, value float64) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, CreateItemInput{
		UserID: userID,
		Name:   "Flour",
		Quantity: &QuantityInput{
			Type: model.QtyWeight, Unit: unit, Value: value,
		},
	})
	if err != nil {
		t.Fatalf("creating weighed item: %v", err)
	}
	return item
}

func TestAdjustQuantitySameUnit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 500)

	res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -100, Unit: "g"})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if res.Deleted {
		t.Fatal("expected item to survive at 400 g")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.QtyValue != 400 {
		t.Errorf("expected 400, got %f", got.QtyValue)
	}
	if got.QtyBase == nil || *got.QtyBase != 400 {
		t.Errorf("expected base 400 g, got %v", got.QtyBase)
	}
}

func TestAdjustQuantityConvertsUnits(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 1500)

	// -1 kg against a gram-denominated item.
	res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -1, Unit: "kg"})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if res.Deleted {
		t.Fatal("expected item to survive at 500 g")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.QtyValue != 500 {
		t.Errorf("expected 500 g, got %f", got.QtyValue)
	}
	if got.QtyUnit != "g" {
		t.Errorf("display unit changed: %s", got.QtyUnit)
	}
}

func TestAdjustQuantityClampsAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 500)

	// Overdrawing clamps to zero instead of going negative, and zero
	// removes the item.
	res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -1, Unit: "kg"})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if !res.Deleted {
		t.Fatal("expected Deleted on zero-crossing")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Errorf("expected row gone after zero-crossing, got %+v", got)
	}
}

func TestAdjustQuantityWriteFailureSurfaces(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 500)

	// Make the update itself fail while the row still exists.
	_, err := database.Exec(
		`CREATE TRIGGER abort_qty_write BEFORE UPDATE OF qty_value ON items
		 BEGIN SELECT RAISE(ABORT, 'write failed'); END`)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	// Even when the computed quantity is zero, a failed write is an error,
	// never a deletion: the item is still on the shelf at its old quantity.
	res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -500, Unit: "g"})
	if err == nil {
		t.Fatal("expected error from failed write")
	}
	if res.Deleted {
		t.Error("failed write must not report Deleted")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil || got.QtyValue != 500 {
		t.Errorf("expected untouched quantity 500, got %+v", got)
	}
}

func TestAdjustQuantityMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	// Adjusting an item that no longer exists is a quiet success, so two
	// clients racing over the last of something both get a clean answer.
	res, err := AdjustQuantity(context.Background(), database, "gone", AdjustInput{Delta: -1})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if !res.Deleted {
		t.Error("expected Deleted for missing item")
	}
}

func TestAdjustQuantityRounds(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "lb", 2)

	// 100 g off a pound-denominated item lands on an irrational-looking
	// fraction; storage keeps four decimal places.
	if _, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -100, Unit: "g"}); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.QtyValue != 1.7795 { // 2 - 100/453.59237, rounded
		t.Errorf("expected 1.7795 lb, got %v", got.QtyValue)
	}
}

func TestAdjustQuantityClearsEstimate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)

	item, err := CreateItem(ctx, database, CreateItemInput{
		UserID: userID,
		Name:   "Grapes",
		Quantity: &QuantityInput{
			Type: model.QtyWeight, Unit: "g", Value: 800, Estimated: true,
		},
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if _, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -50}); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.QtyIsEstimated {
		t.Error("expected estimate flag cleared by manual adjustment")
	}
}

func TestAdjustQuantityCountItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)

	item, err := CreateItem(ctx, database, CreateItemInput{
		UserID: userID,
		Name:   "Eggs",
		Quantity: &QuantityInput{
			Type: model.QtyCount, Unit: "ea", Value: 6,
		},
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	for i := 0; i < 5; i++ {
		res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -1})
		if err != nil {
			t.Fatalf("AdjustQuantity %d: %v", i, err)
		}
		if res.Deleted {
			t.Fatalf("item gone early at step %d", i)
		}
	}

	res, err := AdjustQuantity(ctx, database, item.ID, AdjustInput{Delta: -1})
	if err != nil {
		t.Fatalf("final AdjustQuantity: %v", err)
	}
	if !res.Deleted {
		t.Error("expected Deleted when the last one is used up")
	}
}

func TestSetQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 500)

	res, err := SetQuantity(ctx, database, item.ID, QuantityInput{
		Type: model.QtyWeight, Unit: "kg", Value: 1.2,
	})
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if res.Deleted {
		t.Fatal("unexpected Deleted")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.QtyValue != 1.2 || got.QtyUnit != "kg" {
		t.Errorf("expected 1.2 kg, got %f %s", got.QtyValue, got.QtyUnit)
	}
	if got.QtyBase == nil || *got.QtyBase != 1200 {
		t.Errorf("expected base 1200, got %v", got.QtyBase)
	}
	// The original amount stays as the progress-bar denominator.
	if got.InitialQtyBase == nil || *got.InitialQtyBase != 500 {
		t.Errorf("expected initial base 500, got %v", got.InitialQtyBase)
	}
}

func TestSetQuantityZeroDeletes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	userID := testUser(t, database)
	item := weighedItem(t, database, userID, "g", 500)

	res, err := SetQuantity(ctx, database, item.ID, QuantityInput{
		Type: model.QtyWeight, Unit: "g", Value: 0,
	})
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if !res.Deleted {
		t.Fatal("expected Deleted on zero write")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got != nil {
		t.Error("expected row gone")
	}
}

func TestSetQuantityMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	res, err := SetQuantity(context.Background(), database, "gone", QuantityInput{
		Type: model.QtyWeight, Unit: "g", Value: 100,
	})
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if !res.Deleted {
		t.Error("expected Deleted for missing item")
	}
}
