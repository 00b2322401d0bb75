package main

import (
	"math"
	"strconv"
	"time"
)

// activityMultipliers maps activity level strings to their TDEE multiplier.
// The spaced names are what the onboarding screens submit; the lowercase
// entries are legacy values from older builds. Anything else falls back to
// the sedentary multiplier rather than erroring — see computeTargets.
var activityMultipliers = map[string]float64{
	"Sedentary":         1.2,
	"Lightly Active":    1.375,
	"Moderately Active": 1.55,
	"Very Active":       1.725,
	"Extremely Active":  1.9,

	// legacy lowercase values
	"sedentary": 1.2,
	"light":     1.375,
	"moderate":  1.55,
	"active":    1.725,
	"athlete":   1.9,
}

// Macro split of the daily calorie target: 30% protein, 40% carbs, 30% fat,
// at 4 kcal/g for protein and carbs and 9 kcal/g for fat. Each gram figure is
// rounded independently; the ~1-2 kcal drift from rounding is accepted.
const (
	proteinCalorieShare = 0.30
	carbCalorieShare    = 0.40
	fatCalorieShare     = 0.30
	kcalPerGramProtein  = 4
	kcalPerGramCarb     = 4
	kcalPerGramFat      = 9
)

// minDailyCalories is a hard floor on the computed target. Never recommend
// less without medical supervision, regardless of goal or body metrics.
const minDailyCalories = 1200

// Fallback body metrics used when the profile holds unparseable or
// non-positive values. Onboarding forms can be submitted half-filled; the
// engine degrades to a plausible default adult rather than failing.
const (
	fallbackWeightKG = 70
	fallbackHeightCM = 170
	fallbackAgeYears = 30
)

// parsePositive parses a form field into a positive number, substituting
// fallback when the text is empty, garbage, or non-positive.
func parsePositive(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// computeTargets derives the full nutrition target set from a profile:
// BMR (Mifflin-St Jeor), TDEE, goal-adjusted daily calorie target, macro
// grams, BMI with status, and the water target. Pure and deterministic —
// no I/O, always returns a complete record.
//
// The female BMR offset (-161) is applied to every non-male gender,
// including "other". That mirrors the product's current behavior; if it is
// ever revisited, this is the single place to change.
func computeTargets(p userProfile) derivedTargets {
	w := parsePositive(p.Weight, fallbackWeightKG)
	h := parsePositive(p.Height, fallbackHeightCM)
	a := parsePositive(p.Age, fallbackAgeYears)

	// BMI from weight (kg) and height (m), reported to one decimal.
	// Bracket bounds are strict on the upper edge: exactly 18.5 is Normal,
	// exactly 25 is Overweight, exactly 30 is Obese.
	heightM := h / 100
	bmi := w / (heightM * heightM)
	var status string
	switch {
	case bmi < 18.5:
		status = bmiUnderweight
	case bmi < 25:
		status = bmiNormal
	case bmi < 30:
		status = bmiOverweight
	default:
		status = bmiObese
	}

	// Mifflin-St Jeor: 10w + 6.25h - 5a, +5 for male / -161 otherwise.
	bmr := 10*w + 6.25*h - 5*a
	if p.Gender == genderMale {
		bmr += 5
	} else {
		bmr -= 161
	}

	mult, ok := activityMultipliers[p.ActivityLevel]
	if !ok {
		mult = 1.2
	}
	// TDEE from the unrounded BMR, then rounded once.
	tdee := math.Round(bmr * mult)

	target := tdee
	switch p.Goal {
	case "Weight Loss", "lose_weight":
		target -= 500
	case "Muscle Gain", "gain_muscle":
		target += 300
	}
	// Maintain Weight keeps the TDEE as-is.
	target = math.Max(minDailyCalories, math.Round(target))

	waterTarget := 4000
	if p.Gender == genderFemale {
		waterTarget = 3000
	}

	return derivedTargets{
		BMR:                int(math.Round(bmr)),
		TDEE:               int(tdee),
		DailyCalorieTarget: int(target),
		ProteinTargetG:     int(math.Round(target * proteinCalorieShare / kcalPerGramProtein)),
		CarbTargetG:        int(math.Round(target * carbCalorieShare / kcalPerGramCarb)),
		FatTargetG:         int(math.Round(target * fatCalorieShare / kcalPerGramFat)),
		BMI:                math.Round(bmi*10) / 10,
		BMIStatus:          status,
		WaterTargetML:      waterTarget,
	}
}

// currentMonday returns the Monday of the current week at midnight UTC.
// Uses AddDate to safely handle month/year boundaries — direct day subtraction
// can produce day=0 or negative, which time.Date normalizes but is confusing.
func currentMonday() time.Time {
	now := time.Now().UTC()
	weekday := int(now.Weekday()) // 0=Sun
	if weekday == 0 {
		weekday = 7 // treat Sunday as day 7 so Mon=1..Sun=7
	}
	daysBack := weekday - 1
	return now.AddDate(0, 0, -daysBack).Truncate(24 * time.Hour)
}
