package eligibility_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"leadintake/eligibility"
)

func TestClassifyColorblindWithChronicConditions(t *testing.T) {
	engine := eligibility.NewEngine(eligibility.MedicareSchema)

	res, err := engine.Classify(map[string]interface{}{
		"age":               70,
		"medicarePlan":      "original",
		"hasColorblindness": true,
		"medicalHistory":    []string{"diabetes", "hypertension"},
	})
	require.NoError(t, err)

	want := eligibility.WeightMedicareAge + eligibility.WeightPlanCoversTesting +
		eligibility.WeightColorblindness + 2*eligibility.WeightPerChronic
	require.Equal(t, want, res.Score)
	require.Equal(t, eligibility.Acceptable, res.Verdict)
	require.Equal(t, []eligibility.Factor{
		{Description: "Medicare-age applicant (65+)", Impact: eligibility.Positive, Weight: 30},
		{Description: "Medicare plan covers diagnostic genetic testing", Impact: eligibility.Positive, Weight: 20},
		{Description: "Reported color vision deficiency", Impact: eligibility.Positive, Weight: 25},
		{Description: "2 chronic conditions reported (diabetes, hypertension)", Impact: eligibility.Positive, Weight: 20},
	}, res.Factors)
	require.Equal(t, "ACCEPTABLE: Medicare-age applicant (65+); Reported color vision deficiency.", res.Reason)
}

func TestClassifyIsDeterministic(t *testing.T) {
	engine := eligibility.NewEngine(eligibility.MedicareSchema)
	fields := map[string]interface{}{
		"age":                       68,
		"medicarePlan":              "advantage",
		"familyHistoryOfVisionLoss": true,
		"medicalHistory":            []interface{}{"Glaucoma", "cataracts", "arthritis", "copd"},
		"geneticTestConsent":        true,
	}

	first, err := engine.Classify(fields)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		got, err := engine.Classify(fields)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
	// four chronic conditions are capped
	require.Equal(t, 30+10+15+eligibility.MaxChronicWeight+10, first.Score)
}

func TestClassifyEmptyInput(t *testing.T) {
	res, err := eligibility.NewEngine(eligibility.MedicareSchema).Classify(map[string]interface{}{})
	require.NoError(t, err)
	require.Zero(t, res.Score)
	require.Equal(t, eligibility.NotAcceptable, res.Verdict)
	require.NotNil(t, res.Factors)
	require.Empty(t, res.Factors)
	require.Equal(t, "Not enough information to assess eligibility.", res.Reason)
}

func TestClassifyMissingOptionalFieldsAreNeutral(t *testing.T) {
	engine := eligibility.NewEngine(eligibility.MedicareSchema)
	res, err := engine.Classify(map[string]interface{}{"age": 50})
	require.NoError(t, err)
	require.Zero(t, res.Score)
	require.Len(t, res.Factors, 1)
	require.Equal(t, eligibility.Neutral, res.Factors[0].Impact)
	require.Equal(t, "NOT_ACCEPTABLE: no weighted factors applied.", res.Reason)
}

func TestClassifyDisqualifyingCondition(t *testing.T) {
	engine := eligibility.NewEngine(eligibility.MedicareSchema)
	res, err := engine.Classify(map[string]interface{}{
		"age":               80,
		"medicarePlan":      "supplement",
		"hasColorblindness": true,
		"medicalHistory":    []string{"hospice"},
	})
	require.NoError(t, err)
	require.Equal(t, 30+20+25-100, res.Score)
	require.Equal(t, eligibility.NotAcceptable, res.Verdict)
	require.Equal(t, "NOT_ACCEPTABLE: Disqualifying condition reported: hospice; Medicare-age applicant (65+).", res.Reason)
}

func TestClassifyThresholdBoundary(t *testing.T) {
	engine := eligibility.NewEngine(eligibility.MedicareSchema, eligibility.WithThreshold(50))
	require.Equal(t, 50, engine.Threshold())

	res, err := engine.Classify(map[string]interface{}{"age": 65, "medicarePlan": "original"})
	require.NoError(t, err)
	require.Equal(t, 50, res.Score)
	require.Equal(t, eligibility.Acceptable, res.Verdict)
}

func TestClassifyMalformedStoredValue(t *testing.T) {
	_, err := eligibility.NewEngine(eligibility.MedicareSchema).Classify(map[string]interface{}{
		"age": "seventy",
	})
	require.True(t, errors.Is(err, eligibility.ErrMalformedInput))
}

func TestClassifyCustomRules(t *testing.T) {
	smoker := eligibility.Rule{Name: "smoker", Apply: func(p eligibility.Profile) (eligibility.Factor, bool) {
		if p.Smoker == nil || !*p.Smoker {
			return eligibility.Factor{}, false
		}
		return eligibility.Factor{Description: "Smoker", Impact: eligibility.Negative, Weight: -5}, true
	}}
	engine := eligibility.NewEngine(eligibility.MedicareSchema, eligibility.WithRules(smoker))

	res, err := engine.Classify(map[string]interface{}{"smoker": true, "age": 90})
	require.NoError(t, err)
	require.Equal(t, -5, res.Score)
	require.Len(t, res.Factors, 1)
}
