package symptom

import "strings"

// Symptom is a canonical lowercase symptom tag.
type Symptom string

const (
	Fever             Symptom = "fever"
	Headache          Symptom = "headache"
	Nausea            Symptom = "nausea"
	Vomiting          Symptom = "vomiting"
	Cough             Symptom = "cough"
	SoreThroat        Symptom = "sore throat"
	Fatigue           Symptom = "fatigue"
	Dizziness         Symptom = "dizziness"
	Rash              Symptom = "rash"
	Pain              Symptom = "pain"
	Swelling          Symptom = "swelling"
	ShortnessOfBreath Symptom = "shortness of breath"
	ChestPain         Symptom = "chest pain"
	AbdominalPain     Symptom = "abdominal pain"
	JointPain         Symptom = "joint pain"
	MusclePain        Symptom = "muscle pain"
	Diarrhea          Symptom = "diarrhea"
	Constipation      Symptom = "constipation"
	LossOfAppetite    Symptom = "loss of appetite"
	NeckStiffness     Symptom = "neck stiffness"
	Confusion         Symptom = "confusion"
)

// Vocabulary lists every known tag in extraction order.
var Vocabulary = []Symptom{
	Fever, Headache, Nausea, Vomiting, Cough, SoreThroat, Fatigue, Dizziness,
	Rash, Pain, Swelling, ShortnessOfBreath, ChestPain, AbdominalPain, JointPain,
	MusclePain, Diarrhea, Constipation, LossOfAppetite, NeckStiffness, Confusion,
}

var known = func() map[Symptom]bool {
	m := make(map[Symptom]bool, len(Vocabulary))
	for _, s := range Vocabulary {
		m[s] = true
	}
	return m
}()

// Known reports whether s belongs to the vocabulary.
func Known(s Symptom) bool {
	return known[s]
}

// Set is a duplicate-free list of symptoms. Membership checks ignore order;
// iteration keeps the order in which tags were first added.
type Set []Symptom

// NewSet builds a Set from tags, dropping duplicates and unknown tags.
func NewSet(tags ...Symptom) Set {
	out := make(Set, 0, len(tags))
	seen := make(map[Symptom]bool, len(tags))
	for _, t := range tags {
		if !Known(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Parse normalises client-supplied tags into a Set. Tags outside the
// vocabulary are ignored.
func Parse(tags []string) Set {
	conv := make([]Symptom, 0, len(tags))
	for _, t := range tags {
		conv = append(conv, Symptom(strings.ToLower(strings.TrimSpace(t))))
	}
	return NewSet(conv...)
}

func (s Set) Contains(t Symptom) bool {
	for _, v := range s {
		if v == t {
			return true
		}
	}
	return false
}

// ContainsAny reports whether at least one of tags is in the set.
func (s Set) ContainsAny(tags ...Symptom) bool {
	for _, t := range tags {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s) }

func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

// Entities holds incidental clinical mentions found in a narrative.
type Entities struct {
	Medications []string `json:"medications"`
	Durations   []string `json:"durations"`
	Severities  []string `json:"severities"`
}
