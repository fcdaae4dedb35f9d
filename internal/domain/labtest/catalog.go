package labtest

import "github.com/healthmetrica/cdss/internal/domain/differential"

type descriptor struct {
	id                TestID
	name              string
	reason            string
	costEffectiveness CostEffectiveness
	urgency           Urgency
	estimatedCost     string
	turnaround        string
	selected          bool
}

func (d descriptor) recommendation() Recommendation {
	return Recommendation{
		ID:                d.id,
		Name:              d.name,
		Reason:            d.reason,
		CostEffectiveness: d.costEffectiveness,
		Urgency:           d.urgency,
		EstimatedCost:     d.estimatedCost,
		TurnaroundTime:    d.turnaround,
		Selected:          d.selected,
	}
}

var byDiagnosis = map[differential.DiagnosisID][]descriptor{
	differential.Dengue: {
		{DengueNS1, "Dengue NS1 Antigen Test", "Early detection of dengue virus (days 1-7)",
			CostHigh, Urgent, "$25-40", "2-4 hours", true},
		{PlateletCount, "Platelet Count", "Monitor for thrombocytopenia (dengue complication)",
			CostHigh, Urgent, "$15-25", "1-2 hours", true},
		{DengueIgGIgM, "Dengue IgG/IgM Serology", "Confirm dengue infection (days 5+)",
			CostMedium, Routine, "$30-50", "4-6 hours", false},
	},
	differential.Influenza: {
		{RapidFlu, "Rapid Influenza Diagnostic Test", "Quick confirmation of influenza A/B",
			CostHigh, Urgent, "$20-35", "15-30 minutes", true},
		{ChestXray, "Chest X-Ray", "Rule out pneumonia complications",
			CostMedium, Routine, "$75-150", "1-2 hours", false},
	},
	differential.Meningitis: {
		{LumbarPuncture, "Lumbar Puncture (CSF Analysis)", "Definitive diagnosis of meningitis",
			CostHigh, Stat, "$200-400", "2-4 hours", true},
		{BloodCulture, "Blood Culture", "Identify causative organism",
			CostHigh, Stat, "$50-100", "24-48 hours", true},
		{CTHead, "CT Scan of Head", "Rule out increased intracranial pressure before LP",
			CostMedium, Stat, "$300-600", "30-60 minutes", true},
	},
	differential.Gastroenteritis: {
		{StoolAnalysis, "Stool Analysis & Culture", "Identify bacterial/parasitic causes",
			CostMedium, Routine, "$40-80", "24-48 hours", true},
		{Electrolytes, "Basic Metabolic Panel", "Assess dehydration and electrolyte imbalance",
			CostHigh, Urgent, "$25-50", "1-2 hours", true},
	},
}

var common = []descriptor{
	{CBC, "Complete Blood Count (CBC)", "Assess overall health and detect infections",
		CostHigh, Routine, "$20-40", "1-2 hours", true},
	{CRP, "C-Reactive Protein (CRP)", "Measure inflammation levels",
		CostMedium, Routine, "$15-30", "2-4 hours", false},
}

// Catalog returns every test known to the engine, diagnosis-specific tests
// first in bank order, then the common tests.
func Catalog() []Recommendation {
	var out []Recommendation
	for _, d := range differential.All() {
		for _, t := range byDiagnosis[d.ID] {
			out = append(out, t.recommendation())
		}
	}
	for _, t := range common {
		out = append(out, t.recommendation())
	}
	return out
}

// Lookup returns the catalog entry for id.
func Lookup(id TestID) (Recommendation, bool) {
	for _, r := range Catalog() {
		if r.ID == id {
			return r, true
		}
	}
	return Recommendation{}, false
}
