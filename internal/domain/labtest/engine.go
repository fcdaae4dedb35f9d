package labtest

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/healthmetrica/cdss/internal/domain/differential"
)

// Recommend builds the test list for the chosen primary diagnosis followed
// by the common tests. When primaryID is not among candidates the first
// candidate is used; with no candidates only the common tests are returned.
func Recommend(candidates []differential.Candidate, primaryID string) []Recommendation {
	var primary differential.DiagnosisID
	want := differential.ParseDiagnosisID(primaryID)
	for _, c := range candidates {
		if c.ID == want {
			primary = c.ID
			break
		}
	}
	if primary == "" && len(candidates) > 0 {
		primary = candidates[0].ID
	}

	specific := byDiagnosis[primary]
	out := make([]Recommendation, 0, len(specific)+len(common))
	for _, d := range specific {
		out = append(out, d.recommendation())
	}
	for _, d := range common {
		out = append(out, d.recommendation())
	}
	return out
}

var firstInt = regexp.MustCompile(`\d+`)

// lowerBound returns the first integer in a cost range such as "$25-40".
func lowerBound(cost string) int {
	m := firstInt.FindString(cost)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// TotalEstimatedCost sums the lower bound of every selected test's cost.
func TotalEstimatedCost(tests []Recommendation) int {
	total := 0
	for _, t := range tests {
		if t.Selected {
			total += lowerBound(t.EstimatedCost)
		}
	}
	return total
}

// Toggle returns a copy of tests with the selection flag of id set. The
// second result is false when id is not in the list.
func Toggle(tests []Recommendation, id TestID, selected bool) ([]Recommendation, bool) {
	out := append([]Recommendation(nil), tests...)
	for i := range out {
		if out[i].ID == id {
			out[i].Selected = selected
			return out, true
		}
	}
	return out, false
}

func Selected(tests []Recommendation) []Recommendation {
	var out []Recommendation
	for _, t := range tests {
		if t.Selected {
			out = append(out, t)
		}
	}
	return out
}

var prices = map[TestID]int{
	DengueNS1:     35,
	CBC:           30,
	RapidFlu:      25,
	PlateletCount: 20,
}

var expected = map[TestID]OrderLine{
	DengueNS1: {Name: "Dengue NS1 Antigen", Status: "pending", ExpectedResult: "positive", TurnaroundTime: "2-4 hours"},
	CBC:       {Name: "Complete Blood Count", Status: "pending", ExpectedResult: "abnormal", TurnaroundTime: "1-2 hours"},
	RapidFlu:  {Name: "Rapid Influenza Test", Status: "pending", ExpectedResult: "negative", TurnaroundTime: "15-30 minutes"},
}

const completionWindow = 2 * time.Hour

// PlaceOrder simulates submitting testIDs to the lab.
func PlaceOrder(testIDs []TestID, patientID string, priority Urgency, now time.Time) Order {
	if priority == "" {
		priority = Routine
	}
	lines := make([]OrderLine, 0, len(testIDs))
	total := 0
	for _, id := range testIDs {
		line, ok := expected[id]
		if !ok {
			line = OrderLine{Name: "Unknown Test", Status: "error"}
		}
		line.TestID = id
		lines = append(lines, line)
		total += prices[id]
	}
	return Order{
		OrderID:             fmt.Sprintf("ORD%d", now.UnixMilli()),
		PatientID:           patientID,
		Priority:            priority,
		Status:              "ordered",
		EstimatedCompletion: now.Add(completionWindow).UTC(),
		Tests:               lines,
		TotalCost:           total,
	}
}
