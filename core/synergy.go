package core

import "math"

// CalculateSynergy combines economic and governance activity into a synergy
// score. Economic activity is weighted at 0.6 and governance activity at 0.4;
// the result never drops below zero.
func CalculateSynergy(initial, economicActivity, governanceActivity float64) float64 {
	gain := economicActivity*0.6 + governanceActivity*0.4
	return math.Max(initial+gain, 0)
}

// ApplyPenalty subtracts a penalty from a synergy score, clamped at zero.
func ApplyPenalty(synergy, penalty float64) float64 {
	return math.Max(synergy-penalty, 0)
}

// ConvertToTokens converts a synergy score into tokens at the given rate.
func ConvertToTokens(synergy, conversionRate float64) float64 {
	return synergy * conversionRate
}

// AdjustConversionRate scales the conversion rate by current network
// conditions, 5% per unit of condition.
func AdjustConversionRate(currentRate, networkConditions float64) float64 {
	return currentRate * (1.0 + networkConditions*0.05)
}
