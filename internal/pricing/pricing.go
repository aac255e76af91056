// Package pricing implements the SOAT rule table.
//
// Pricing is a pure function of vehicle type and year; usage and city are
// collected for the quotation snapshot but do not enter the formula.
package pricing

import "github.com/autofondo/barbara/internal/models"

// Base prices in soles by vehicle type.
var basePrices = map[models.VehicleType]int{
	models.VehicleAuto:      140,
	models.VehicleMoto:      80,
	models.VehicleTaxi:      200,
	models.VehicleComercial: 300,
	models.VehicleCamioneta: 140,
}

// DefaultBasePrice applies when the vehicle type is unknown to the table.
const DefaultBasePrice = 140

// Year adjustment thresholds.
const (
	recentYearThreshold = 2020
	midYearThreshold    = 2010
	recentYearSurcharge = 20
	midYearSurcharge    = 10
)

// Price computes the SOAT price in soles for the given vehicle type and year.
// The result is always positive and deterministic.
func Price(vehicleType models.VehicleType, year int) int {
	base, ok := basePrices[vehicleType]
	if !ok {
		base = DefaultBasePrice
	}
	switch {
	case year >= recentYearThreshold:
		return base + recentYearSurcharge
	case year >= midYearThreshold:
		return base + midYearSurcharge
	default:
		return base
	}
}
