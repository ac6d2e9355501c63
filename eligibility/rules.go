package eligibility

import (
	"fmt"
	"strings"
)

// Rule weights. Changing any of these changes stored scores for new submissions only.
const (
	WeightMedicareAge       = 30
	WeightUnderage          = -60
	WeightPlanCoversTesting = 20
	WeightPlanAdvantage     = 10
	WeightNoCoverage        = -30
	WeightColorblindness    = 25
	WeightFamilyVisionLoss  = 15
	WeightPerChronic        = 10
	MaxChronicWeight        = 30
	WeightDisqualifying     = -100
	WeightConsentGiven      = 10
	WeightConsentDeclined   = -40
)

// ChronicConditions are medical history entries that raise the testing priority.
var ChronicConditions = []string{
	"diabetes",
	"hypertension",
	"glaucoma",
	"macular degeneration",
	"cataracts",
	"heart disease",
	"high cholesterol",
	"kidney disease",
	"arthritis",
	"copd",
}

// DisqualifyingConditions end eligibility regardless of other answers.
var DisqualifyingConditions = []string{
	"hospice",
	"end-stage renal disease",
	"esrd",
	"active chemotherapy",
}

// DefaultRules returns the production rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "age_bracket", Apply: ageBracket},
		{Name: "plan_fit", Apply: planFit},
		{Name: "colorblindness", Apply: colorblindness},
		{Name: "family_vision_loss", Apply: familyVisionLoss},
		{Name: "chronic_conditions", Apply: chronicConditions},
		{Name: "disqualifying_conditions", Apply: disqualifyingConditions},
		{Name: "testing_consent", Apply: testingConsent},
	}
}

func ageBracket(p Profile) (Factor, bool) {
	if p.Age == nil {
		return Factor{}, false
	}
	switch age := *p.Age; {
	case age >= 65:
		return Factor{Description: "Medicare-age applicant (65+)", Impact: Positive, Weight: WeightMedicareAge}, true
	case age < 18:
		return Factor{Description: "Applicant is under 18", Impact: Negative, Weight: WeightUnderage}, true
	default:
		return Factor{Description: fmt.Sprintf("Applicant aged %d, below Medicare age", age), Impact: Neutral}, true
	}
}

func planFit(p Profile) (Factor, bool) {
	switch p.MedicarePlan {
	case "original", "supplement":
		return Factor{Description: "Medicare plan covers diagnostic genetic testing", Impact: Positive, Weight: WeightPlanCoversTesting}, true
	case "advantage":
		return Factor{Description: "Medicare Advantage plan, coverage varies by carrier", Impact: Positive, Weight: WeightPlanAdvantage}, true
	case "none":
		return Factor{Description: "No active Medicare coverage", Impact: Negative, Weight: WeightNoCoverage}, true
	}
	return Factor{}, false
}

func colorblindness(p Profile) (Factor, bool) {
	if p.HasColorblindness == nil || !*p.HasColorblindness {
		return Factor{}, false
	}
	return Factor{Description: "Reported color vision deficiency", Impact: Positive, Weight: WeightColorblindness}, true
}

func familyVisionLoss(p Profile) (Factor, bool) {
	if p.FamilyVisionLoss == nil || !*p.FamilyVisionLoss {
		return Factor{}, false
	}
	return Factor{Description: "Family history of vision loss", Impact: Positive, Weight: WeightFamilyVisionLoss}, true
}

func chronicConditions(p Profile) (Factor, bool) {
	found := matchConditions(p.MedicalHistory, ChronicConditions)
	if len(found) == 0 {
		return Factor{}, false
	}
	weight := WeightPerChronic * len(found)
	if weight > MaxChronicWeight {
		weight = MaxChronicWeight
	}
	noun := "conditions"
	if len(found) == 1 {
		noun = "condition"
	}
	return Factor{
		Description: fmt.Sprintf("%d chronic %s reported (%s)", len(found), noun, strings.Join(found, ", ")),
		Impact:      Positive,
		Weight:      weight,
	}, true
}

func disqualifyingConditions(p Profile) (Factor, bool) {
	found := matchConditions(p.MedicalHistory, DisqualifyingConditions)
	if len(found) == 0 {
		return Factor{}, false
	}
	return Factor{
		Description: "Disqualifying condition reported: " + strings.Join(found, ", "),
		Impact:      Negative,
		Weight:      WeightDisqualifying,
	}, true
}

func testingConsent(p Profile) (Factor, bool) {
	if p.GeneticTestConsent == nil {
		return Factor{}, false
	}
	if *p.GeneticTestConsent {
		return Factor{Description: "Consented to genetic testing", Impact: Positive, Weight: WeightConsentGiven}, true
	}
	return Factor{Description: "Declined genetic testing consent", Impact: Negative, Weight: WeightConsentDeclined}, true
}

// matchConditions returns the known conditions present in history, in the
// order of known and without duplicates.
func matchConditions(history, known []string) []string {
	if len(history) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[strings.ToLower(strings.TrimSpace(h))] = true
	}
	var out []string
	for _, k := range known {
		if seen[k] {
			out = append(out, k)
		}
	}
	return out
}
