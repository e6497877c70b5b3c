// Package units converts item quantities between units within one
// measurement family. Weight converts through grams, volume through
// milliliters, and the count-like families (count, bunch, other) are always
// identity conversions.
//
// Unit lookups never fail: an unknown unit gets a conversion factor of 1,
// i.e. it is treated as already being the base unit. Analyzer-provided unit
// strings are free-form, so degrading to a plausible number beats rejecting
// the value.
package units

import (
	"strings"

	"github.com/pantrylog/pantrylog/internal/model"
)

var weightFactors = map[string]float64{
	"g":  1,
	"kg": 1000,
	"lb": 453.59237,
	"oz": 28.349523125,
}

var volumeFactors = map[string]float64{
	"ml":    1,
	"l":     1000,
	"fl_oz": 29.5735295625,
	"cup":   240,
}

// BaseUnit returns the canonical pivot unit for a quantity type.
func BaseUnit(t model.QtyType) string {
	switch t {
	case model.QtyWeight:
		return "g"
	case model.QtyVolume:
		return "ml"
	}
	return "ea"
}

func factor(table map[string]float64, unit string) float64 {
	if f, ok := table[strings.ToLower(unit)]; ok {
		return f
	}
	return 1
}

// ToBase converts a value from the given unit into the type's base unit.
func ToBase(value float64, unit string, t model.QtyType) float64 {
	switch t {
	case model.QtyWeight:
		return value * factor(weightFactors, unit)
	case model.QtyVolume:
		return value * factor(volumeFactors, unit)
	}
	return value
}

// Between converts a value from one unit into another within the same
// quantity type. Equal unit names return the value untouched to avoid
// floating-point round-trip drift.
func Between(value float64, fromUnit, toUnit string, t model.QtyType) float64 {
	if fromUnit == toUnit {
		return value
	}
	base := ToBase(value, fromUnit, t)
	switch t {
	case model.QtyWeight:
		return base / factor(weightFactors, toUnit)
	case model.QtyVolume:
		return base / factor(volumeFactors, toUnit)
	}
	return value
}

// QuickSteps returns the suggested adjustment increments for a quantity type,
// in the type's base unit (grams/milliliters for measured types).
func QuickSteps(t model.QtyType) []float64 {
	switch t {
	case model.QtyWeight, model.QtyVolume:
		return []float64{-100, -50, 50, 100}
	}
	return []float64{-1, 1}
}
