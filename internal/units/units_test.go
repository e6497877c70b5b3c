package units

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pantrylog/pantrylog/internal/model"
)

func TestToBaseWeight(t *testing.T) {
	assert.InDelta(t, 1000, ToBase(1, "kg", model.QtyWeight), 1e-9)
	assert.InDelta(t, 453.59237, ToBase(1, "lb", model.QtyWeight), 1e-5)
	assert.InDelta(t, 453.59237, ToBase(16, "oz", model.QtyWeight), 1e-5)
	assert.InDelta(t, 250, ToBase(250, "g", model.QtyWeight), 1e-9)
}

func TestToBaseVolume(t *testing.T) {
	assert.InDelta(t, 1000, ToBase(1, "l", model.QtyVolume), 1e-9)
	assert.InDelta(t, 236.588, ToBase(8, "fl_oz", model.QtyVolume), 1e-2)
	assert.InDelta(t, 240, ToBase(1, "cup", model.QtyVolume), 1e-9)
}

func TestToBaseCaseInsensitive(t *testing.T) {
	assert.InDelta(t, 1000, ToBase(1, "KG", model.QtyWeight), 1e-9)
	assert.InDelta(t, 240, ToBase(1, "Cup", model.QtyVolume), 1e-9)
}

func TestUnknownUnitFallsBackToBase(t *testing.T) {
	// Free-form analyzer units degrade to a factor of 1, never an error.
	assert.InDelta(t, 3, ToBase(3, "handful", model.QtyWeight), 1e-9)
	assert.InDelta(t, 3, Between(3, "handful", "g", model.QtyWeight), 1e-9)
	assert.InDelta(t, 500, Between(500, "g", "handful", model.QtyWeight), 1e-9)
}

func TestBetween(t *testing.T) {
	assert.InDelta(t, 1000, Between(1, "kg", "g", model.QtyWeight), 1e-9)
	assert.InDelta(t, 1, Between(1000, "g", "kg", model.QtyWeight), 1e-9)
	assert.InDelta(t, 1, Between(240, "ml", "cup", model.QtyVolume), 1e-9)
}

func TestBetweenSameUnitIsExact(t *testing.T) {
	// No round-trip through the base unit when units match.
	v := 0.1 + 0.2 // not exactly representable
	assert.Equal(t, v, Between(v, "cup", "cup", model.QtyVolume))
}

func TestCountLikeTypesAreIdentity(t *testing.T) {
	for _, typ := range []model.QtyType{model.QtyCount, model.QtyBunch, model.QtyOther} {
		assert.Equal(t, 7.0, ToBase(7, "kg", typ))
		assert.Equal(t, 7.0, Between(7, "kg", "lb", typ))
		assert.Equal(t, 7.0, Between(7, "whatever", "ea", typ))
	}
}

func TestRoundTrip(t *testing.T) {
	weightUnits := []string{"g", "kg", "lb", "oz"}
	for _, u := range weightUnits {
		for _, v := range weightUnits {
			got := Between(Between(123.456, u, v, model.QtyWeight), v, u, model.QtyWeight)
			assert.InDelta(t, 123.456, got, 1e-6, "weight %s -> %s -> %s", u, v, u)
		}
	}

	volumeUnits := []string{"ml", "l", "fl_oz", "cup"}
	for _, u := range volumeUnits {
		for _, v := range volumeUnits {
			got := Between(Between(0.75, u, v, model.QtyVolume), v, u, model.QtyVolume)
			assert.InDelta(t, 0.75, got, 1e-6, "volume %s -> %s -> %s", u, v, u)
		}
	}
}

func TestBaseUnit(t *testing.T) {
	assert.Equal(t, "g", BaseUnit(model.QtyWeight))
	assert.Equal(t, "ml", BaseUnit(model.QtyVolume))
	assert.Equal(t, "ea", BaseUnit(model.QtyCount))
	assert.Equal(t, "ea", BaseUnit(model.QtyBunch))
	assert.Equal(t, "ea", BaseUnit(model.QtyOther))
}

func TestQuickSteps(t *testing.T) {
	assert.Equal(t, []float64{-1, 1}, QuickSteps(model.QtyCount))
	assert.Equal(t, []float64{-100, -50, 50, 100}, QuickSteps(model.QtyWeight))
}
