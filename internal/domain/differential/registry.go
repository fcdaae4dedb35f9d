package differential

import "github.com/healthmetrica/cdss/internal/domain/symptom"

// bank holds every known diagnosis in bank order. Ties in probability are
// broken by this order.
var bank = []Descriptor{
	{
		ID:          Dengue,
		Name:        "Dengue Fever",
		ICD10:       "A90",
		Probability: 72,
		Severity:    SeverityHigh,
		Description: "A mosquito-borne viral infection common in tropical and subtropical areas. " +
			"Characterized by high fever, severe headache, and muscle pain.",
		KeySymptoms: symptom.Set{symptom.Fever, symptom.Headache, symptom.MusclePain, symptom.Nausea},
		ContributingFactors: []string{
			"High fever (>101°F)",
			"Severe frontal headache",
			"Muscle and joint pain",
			"Geographic location (tropical/subtropical)",
		},
		RiskFactors: []string{"Recent travel to endemic areas", "Monsoon season", "Urban environment"},
		NextSteps:   []string{"Dengue NS1 antigen test", "Platelet count", "Complete blood count"},
	},
	{
		ID:          Influenza,
		Name:        "Influenza A/B",
		ICD10:       "J11.1",
		Probability: 45,
		Severity:    SeverityMedium,
		Description: "A viral respiratory illness that can cause mild to severe illness. " +
			"Most common during flu season.",
		KeySymptoms:         symptom.Set{symptom.Fever, symptom.Cough, symptom.Headache, symptom.Fatigue},
		ContributingFactors: []string{"Sudden onset of fever", "Dry cough", "Generalized body aches", "Seasonal timing"},
		RiskFactors:         []string{"Flu season", "Close contact with infected individuals", "Lack of vaccination"},
		NextSteps:           []string{"Rapid influenza diagnostic test", "Supportive care", "Antiviral consideration"},
	},
	{
		ID:          Meningitis,
		Name:        "Bacterial Meningitis",
		ICD10:       "G00.9",
		Probability: 28,
		Severity:    SeverityHigh,
		Description: "A serious infection of the membranes surrounding the brain and spinal cord. " +
			"Requires immediate medical attention.",
		KeySymptoms:         symptom.Set{symptom.Fever, symptom.Headache, symptom.NeckStiffness, symptom.Nausea},
		ContributingFactors: []string{"Severe headache", "High fever", "Neck stiffness (if present)", "Altered mental status"},
		RiskFactors:         []string{"Age extremes", "Immunocompromised state", "Close quarters living"},
		NextSteps:           []string{"Lumbar puncture", "Blood cultures", "CT scan of head"},
	},
	{
		ID:          Gastroenteritis,
		Name:        "Viral Gastroenteritis",
		ICD10:       "A08.4",
		Probability: 35,
		Severity:    SeverityLow,
		Description: "An intestinal infection marked by watery diarrhea, abdominal cramps, " +
			"nausea or vomiting, and sometimes fever.",
		KeySymptoms: symptom.Set{symptom.Nausea, symptom.Vomiting, symptom.Diarrhea, symptom.AbdominalPain},
		ContributingFactors: []string{
			"Nausea and vomiting",
			"Gastrointestinal symptoms",
			"Recent food exposure",
			"Dehydration signs",
		},
		RiskFactors: []string{"Contaminated food/water", "Close contact with infected person", "Poor hygiene"},
		NextSteps:   []string{"Stool analysis", "Electrolyte panel", "Hydration assessment"},
	},
}

var unrecognized = Descriptor{
	ID:          Unrecognized,
	Name:        "Unrecognized condition",
	Severity:    SeverityLow,
	Description: "No descriptor is registered for this diagnosis.",
}

// Lookup returns the descriptor for id. Ids outside the bank resolve to the
// Unrecognized descriptor.
func Lookup(id DiagnosisID) Descriptor {
	switch id {
	case Dengue:
		return bank[0]
	case Influenza:
		return bank[1]
	case Meningitis:
		return bank[2]
	case Gastroenteritis:
		return bank[3]
	default:
		return unrecognized
	}
}

// All returns every registered descriptor in bank order.
func All() []Descriptor {
	return append([]Descriptor(nil), bank...)
}

func bankIndex(id DiagnosisID) int {
	for i, d := range bank {
		if d.ID == id {
			return i
		}
	}
	return len(bank)
}
