package symptom

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern *regexp.Regexp
	tag     Symptom
}

// symptomRules is evaluated in order; the first match of a rule adds its tag.
var symptomRules = []rule{
	{regexp.MustCompile(`(?i)fever|temperature|hot|chills`), Fever},
	{regexp.MustCompile(`(?i)headache|head pain|migraine`), Headache},
	{regexp.MustCompile(`(?i)nausea|nauseous|sick to stomach`), Nausea},
	{regexp.MustCompile(`(?i)vomit|vomiting|throw up`), Vomiting},
	{regexp.MustCompile(`(?i)cough|coughing`), Cough},
	{regexp.MustCompile(`(?i)sore throat|throat pain`), SoreThroat},
	{regexp.MustCompile(`(?i)fatigue|tired|exhausted|weakness`), Fatigue},
	{regexp.MustCompile(`(?i)dizziness|dizzy|lightheaded`), Dizziness},
	{regexp.MustCompile(`(?i)rash|skin irritation|red spots`), Rash},
	{regexp.MustCompile(`(?i)pain|ache|aching|hurt`), Pain},
	{regexp.MustCompile(`(?i)swelling|swollen|inflammation`), Swelling},
	{regexp.MustCompile(`(?i)shortness of breath|difficulty breathing`), ShortnessOfBreath},
	{regexp.MustCompile(`(?i)chest pain|chest discomfort`), ChestPain},
	{regexp.MustCompile(`(?i)abdominal pain|stomach pain|belly pain`), AbdominalPain},
	{regexp.MustCompile(`(?i)joint pain|arthritis`), JointPain},
	{regexp.MustCompile(`(?i)muscle pain|muscle ache|body aches?`), MusclePain},
	{regexp.MustCompile(`(?i)diarrhea|loose stools`), Diarrhea},
	{regexp.MustCompile(`(?i)constipation`), Constipation},
	{regexp.MustCompile(`(?i)loss of appetite|no appetite`), LossOfAppetite},
	{regexp.MustCompile(`(?i)stiff neck|neck stiffness`), NeckStiffness},
	{regexp.MustCompile(`(?i)confusion|confused|disoriented`), Confusion},
}

var (
	medicationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)tylenol|acetaminophen`),
		regexp.MustCompile(`(?i)ibuprofen|advil|motrin`),
		regexp.MustCompile(`(?i)aspirin`),
		regexp.MustCompile(`(?i)antibiotics?`),
	}
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(days|day|hours|hour|weeks|week|months|month)`)
	severityPattern = regexp.MustCompile(`(?i)mild|moderate|severe|intense|slight|extreme|unbearable`)
)

// Extract returns the canonical symptom tags mentioned in text. Each tag
// appears at most once regardless of how often it is mentioned.
func Extract(text string) Set {
	out := make(Set, 0, 4)
	for _, r := range symptomRules {
		if r.pattern.MatchString(text) && !out.Contains(r.tag) {
			out = append(out, r.tag)
		}
	}
	return out
}

// ExtractEntities pulls medication names, durations and severity qualifiers
// from text. Every list is lower-cased and de-duplicated.
func ExtractEntities(text string) Entities {
	var meds []string
	for _, p := range medicationPatterns {
		meds = append(meds, p.FindAllString(text, -1)...)
	}
	return Entities{
		Medications: dedupLower(meds),
		Durations:   dedupLower(durationPattern.FindAllString(text, -1)),
		Severities:  dedupLower(severityPattern.FindAllString(text, -1)),
	}
}

func dedupLower(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(s)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
