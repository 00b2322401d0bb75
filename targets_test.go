package main

import (
	"math"
	"testing"
)

// makeProfile builds a fully-populated profile for targets tests. Individual
// tests override fields to exercise fallbacks and brackets.
func makeProfile(gender, age, height, weight, activity, goal string) userProfile {
	return userProfile{
		Gender:        gender,
		Age:           age,
		Height:        height,
		Weight:        weight,
		ActivityLevel: activity,
		Goal:          goal,
	}
}

/* ─── Worked scenario ────────────────────────────────────────────────── */

// TestComputeTargets_ReferenceScenario pins the full derivation for a known
// profile: female, 30y, 165cm, 60kg, moderately active, weight loss.
// BMR = 10*60 + 6.25*165 - 5*30 - 161 = 1320.25 → 1320
// TDEE = round(1320.25 * 1.55) = 2046; target = 2046 - 500 = 1546
// protein = round(1546*0.3/4) = 116g; carbs = round(1546*0.4/4) = 155g;
// fat = round(1546*0.3/9) = 52g; water = 3000ml.
func TestComputeTargets_ReferenceScenario(t *testing.T) {
	p := makeProfile(genderFemale, "30", "165", "60", "Moderately Active", "Weight Loss")
	got := computeTargets(p)

	if got.BMR != 1320 {
		t.Errorf("BMR = %d, want 1320", got.BMR)
	}
	if got.TDEE != 2046 {
		t.Errorf("TDEE = %d, want 2046", got.TDEE)
	}
	if got.DailyCalorieTarget != 1546 {
		t.Errorf("target = %d, want 1546", got.DailyCalorieTarget)
	}
	if got.ProteinTargetG != 116 {
		t.Errorf("protein = %dg, want 116g", got.ProteinTargetG)
	}
	if got.CarbTargetG != 155 {
		t.Errorf("carbs = %dg, want 155g", got.CarbTargetG)
	}
	if got.FatTargetG != 52 {
		t.Errorf("fat = %dg, want 52g", got.FatTargetG)
	}
	if got.WaterTargetML != 3000 {
		t.Errorf("water = %dml, want 3000ml", got.WaterTargetML)
	}
}

/* ─── Macro split / calorie floor properties ─────────────────────────── */

// TestComputeTargets_MacroEnergyMatchesTarget verifies that the three macro
// gram figures multiply back to the calorie target within rounding drift
// (each gram figure rounds independently, so a few kcal of slack is expected).
func TestComputeTargets_MacroEnergyMatchesTarget(t *testing.T) {
	profiles := []userProfile{
		makeProfile(genderFemale, "30", "165", "60", "Moderately Active", "Weight Loss"),
		makeProfile(genderMale, "45", "182", "95", "Sedentary", "Muscle Gain"),
		makeProfile(genderOther, "22", "170", "58", "Very Active", "Maintain Weight"),
		makeProfile(genderFemale, "70", "150", "45", "Sedentary", "Weight Loss"),
	}
	for _, p := range profiles {
		got := computeTargets(p)
		energy := got.ProteinTargetG*4 + got.CarbTargetG*4 + got.FatTargetG*9
		if math.Abs(float64(energy-got.DailyCalorieTarget)) > 10 {
			t.Errorf("macro energy %d kcal vs target %d kcal, drift > 10", energy, got.DailyCalorieTarget)
		}
	}
}

// TestComputeTargets_CalorieFloor verifies the 1200 kcal hard floor: a small,
// sedentary profile on a weight-loss goal must never be told to eat less.
func TestComputeTargets_CalorieFloor(t *testing.T) {
	p := makeProfile(genderFemale, "80", "145", "40", "Sedentary", "Weight Loss")
	got := computeTargets(p)
	if got.DailyCalorieTarget < 1200 {
		t.Errorf("target = %d, floor is 1200", got.DailyCalorieTarget)
	}
}

/* ─── Gender-dependent outputs ───────────────────────────────────────── */

// TestComputeTargets_WaterByGender verifies the binary water target: 3000ml
// for female, 4000ml for male and other.
func TestComputeTargets_WaterByGender(t *testing.T) {
	cases := []struct {
		gender string
		want   int
	}{
		{genderFemale, 3000},
		{genderMale, 4000},
		{genderOther, 4000},
	}
	for _, tc := range cases {
		t.Run(tc.gender, func(t *testing.T) {
			p := makeProfile(tc.gender, "30", "170", "70", "Sedentary", "Maintain Weight")
			if got := computeTargets(p).WaterTargetML; got != tc.want {
				t.Errorf("water for %s = %dml, want %dml", tc.gender, got, tc.want)
			}
		})
	}
}

// TestComputeTargets_OtherGenderUsesFemaleOffset verifies that "other"
// gets the -161 BMR offset, matching female for identical body metrics.
func TestComputeTargets_OtherGenderUsesFemaleOffset(t *testing.T) {
	female := computeTargets(makeProfile(genderFemale, "30", "170", "70", "Sedentary", "Maintain Weight"))
	other := computeTargets(makeProfile(genderOther, "30", "170", "70", "Sedentary", "Maintain Weight"))
	male := computeTargets(makeProfile(genderMale, "30", "170", "70", "Sedentary", "Maintain Weight"))

	if other.BMR != female.BMR {
		t.Errorf("other BMR = %d, want female's %d", other.BMR, female.BMR)
	}
	if male.BMR-other.BMR != 166 {
		t.Errorf("male-other BMR delta = %d, want 166 (+5 vs -161)", male.BMR-other.BMR)
	}
}

/* ─── BMI brackets ───────────────────────────────────────────────────── */

// TestComputeTargets_BMIBrackets pins the bracket boundaries: upper bounds
// are strict, so exactly 18.5 is Normal, exactly 25 is Overweight, exactly
// 30 is Obese. A 100cm height makes BMI numerically equal the weight.
func TestComputeTargets_BMIBrackets(t *testing.T) {
	cases := []struct {
		weight string
		want   string
	}{
		{"18.4", bmiUnderweight},
		{"18.5", bmiNormal},
		{"24.9", bmiNormal},
		{"25", bmiOverweight},
		{"29.9", bmiOverweight},
		{"30", bmiObese},
		{"45", bmiObese},
	}
	for _, tc := range cases {
		t.Run(tc.weight, func(t *testing.T) {
			p := makeProfile(genderMale, "30", "100", tc.weight, "Sedentary", "Maintain Weight")
			got := computeTargets(p)
			if got.BMIStatus != tc.want {
				t.Errorf("BMI %.1f status = %s, want %s", got.BMI, got.BMIStatus, tc.want)
			}
		})
	}
}

// TestComputeTargets_BMIOneDecimal verifies BMI is reported to one decimal.
func TestComputeTargets_BMIOneDecimal(t *testing.T) {
	p := makeProfile(genderFemale, "30", "165", "60", "Sedentary", "Maintain Weight")
	got := computeTargets(p)
	// 60 / 1.65² = 22.0385... → 22.0
	if got.BMI != 22.0 {
		t.Errorf("BMI = %v, want 22.0", got.BMI)
	}
}

/* ─── Fallback and degradation behavior ──────────────────────────────── */

// TestComputeTargets_FallbackMetrics verifies that unparseable or
// non-positive form values degrade to the documented defaults (70kg,
// 170cm, 30y) instead of failing.
func TestComputeTargets_FallbackMetrics(t *testing.T) {
	reference := computeTargets(makeProfile(genderMale, "30", "170", "70", "Sedentary", "Maintain Weight"))

	cases := []struct {
		name                string
		age, height, weight string
	}{
		{"empty fields", "", "", ""},
		{"garbage text", "abc", "tall", "heavy"},
		{"zero values", "0", "0", "0"},
		{"negative values", "-5", "-170", "-70"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := makeProfile(genderMale, tc.age, tc.height, tc.weight, "Sedentary", "Maintain Weight")
			got := computeTargets(p)
			if got != reference {
				t.Errorf("degraded profile produced %+v, want fallback result %+v", got, reference)
			}
		})
	}
}

// TestComputeTargets_UnknownActivityLevel verifies that an unrecognized
// activity level falls back to the sedentary multiplier.
func TestComputeTargets_UnknownActivityLevel(t *testing.T) {
	known := computeTargets(makeProfile(genderMale, "30", "170", "70", "Sedentary", "Maintain Weight"))
	unknown := computeTargets(makeProfile(genderMale, "30", "170", "70", "couch potato", "Maintain Weight"))
	if unknown.TDEE != known.TDEE {
		t.Errorf("unknown activity TDEE = %d, want sedentary %d", unknown.TDEE, known.TDEE)
	}
}

// TestComputeTargets_LegacyActivityValues verifies the lowercase legacy
// activity names map to the same multipliers as the current spaced names.
func TestComputeTargets_LegacyActivityValues(t *testing.T) {
	pairs := [][2]string{
		{"Sedentary", "sedentary"},
		{"Lightly Active", "light"},
		{"Moderately Active", "moderate"},
		{"Very Active", "active"},
		{"Extremely Active", "athlete"},
	}
	for _, pair := range pairs {
		current := computeTargets(makeProfile(genderMale, "30", "170", "70", pair[0], "Maintain Weight"))
		legacy := computeTargets(makeProfile(genderMale, "30", "170", "70", pair[1], "Maintain Weight"))
		if current.TDEE != legacy.TDEE {
			t.Errorf("%q TDEE %d != legacy %q TDEE %d", pair[0], current.TDEE, pair[1], legacy.TDEE)
		}
	}
}

// TestComputeTargets_GoalAdjustments verifies the goal deltas against the
// maintain baseline: -500 for weight loss, +300 for muscle gain.
func TestComputeTargets_GoalAdjustments(t *testing.T) {
	base := computeTargets(makeProfile(genderMale, "30", "180", "80", "Moderately Active", "Maintain Weight"))
	loss := computeTargets(makeProfile(genderMale, "30", "180", "80", "Moderately Active", "Weight Loss"))
	gain := computeTargets(makeProfile(genderMale, "30", "180", "80", "Moderately Active", "Muscle Gain"))

	if base.DailyCalorieTarget != base.TDEE {
		t.Errorf("maintain target = %d, want TDEE %d", base.DailyCalorieTarget, base.TDEE)
	}
	if loss.DailyCalorieTarget != base.DailyCalorieTarget-500 {
		t.Errorf("weight loss target = %d, want %d", loss.DailyCalorieTarget, base.DailyCalorieTarget-500)
	}
	if gain.DailyCalorieTarget != base.DailyCalorieTarget+300 {
		t.Errorf("muscle gain target = %d, want %d", gain.DailyCalorieTarget, base.DailyCalorieTarget+300)
	}
}
