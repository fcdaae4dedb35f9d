package dialogue

import (
	"errors"
	"strings"
	"time"

	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// MaxQuestions caps the length of a script.
const MaxQuestions = 8

var (
	ErrEmptyAnswer    = errors.New("answer must not be blank")
	ErrScriptComplete = errors.New("dialogue script already complete")
)

// Question is one follow-up prompt shown to the clinician.
type Question struct {
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options,omitempty"`
	Category string   `json:"category"`
}

// Script is the ordered question list for one consultation. It is built
// once and never changes afterwards.
type Script struct {
	Questions []Question `json:"questions"`
}

func (s Script) Len() int { return len(s.Questions) }

// State tracks progress through a Script.
type State struct {
	Cursor int                 `json:"cursor"`
	Turns  []differential.Turn `json:"turns"`
}

var exposure = Question{
	Prompt:   "Are there any recent travel history or exposure to sick individuals?",
	Options:  []string{"Recent travel", "Exposure to sick person", "Both", "Neither"},
	Category: "exposure",
}

var closing = []Question{
	{
		Prompt:   "Has the patient taken any medications for these symptoms?",
		Options:  []string{"Over-the-counter pain relievers", "Antibiotics", "Other medications", "No medications"},
		Category: "treatment",
	},
	{
		Prompt:   "Are there any other symptoms not mentioned yet?",
		Category: "additional",
	},
}

var questionBank = map[symptom.Symptom][]Question{
	symptom.Fever: {
		{"How high is the fever? Has it been measured?",
			[]string{"Low grade (99-100°F)", "Moderate (101-102°F)", "High (103°F+)", "Not measured"}, "severity"},
		{"When did the fever start?",
			[]string{"Today", "1-2 days ago", "3-5 days ago", "More than a week ago"}, "timeline"},
	},
	symptom.Headache: {
		{"Can you describe the type of headache?",
			[]string{"Throbbing/pulsating", "Constant dull ache", "Sharp/stabbing", "Pressure-like"}, "quality"},
		{"Where is the headache located?",
			[]string{"Forehead", "Temples", "Back of head", "All over"}, "location"},
	},
	symptom.Nausea: {
		{"Has the nausea led to vomiting?",
			[]string{"Yes, multiple times", "Yes, once or twice", "No, just nausea", "Dry heaving only"}, "severity"},
	},
	symptom.Cough: {
		{"Is the cough productive (with phlegm) or dry?",
			[]string{"Dry cough", "Productive with clear phlegm", "Productive with colored phlegm", "Blood in phlegm"}, "quality"},
	},
	symptom.Rash: {
		{"Can you describe the appearance of the rash?",
			[]string{"Red spots", "Raised bumps", "Flat red areas", "Blistering"}, "appearance"},
		{"Where on the body is the rash located?",
			[]string{"Face/neck", "Trunk", "Arms/legs", "Widespread"}, "location"},
	},
	symptom.Pain: {
		{"On a scale of 1-10, how would you rate the pain intensity?",
			[]string{"1-3 (Mild)", "4-6 (Moderate)", "7-8 (Severe)", "9-10 (Extreme)"}, "severity"},
	},
}

// BuildScript assembles the exposure question, the symptom-specific
// questions in symptom order, and the closing questions, truncated to
// MaxQuestions.
func BuildScript(symptoms symptom.Set) Script {
	qs := []Question{exposure}
	for _, s := range symptoms {
		qs = append(qs, questionBank[s]...)
	}
	qs = append(qs, closing...)
	if len(qs) > MaxQuestions {
		qs = qs[:MaxQuestions]
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return Script{Questions: out}
}

// Current returns the question awaiting an answer, or nil once the script
// is exhausted.
func Current(script Script, state State) *Question {
	if state.Cursor < 0 || state.Cursor >= script.Len() {
		return nil
	}
	q := script.Questions[state.Cursor]
	return &q
}

// Answered counts the turns with a non-blank answer.
func Answered(state State) int {
	n := 0
	for _, t := range state.Turns {
		if strings.TrimSpace(t.Answer) != "" {
			n++
		}
	}
	return n
}

func Done(script Script, state State) bool {
	return state.Cursor >= script.Len()
}

// Advance records answer against the current question and moves the cursor
// forward. It returns the next question, or nil when the script is done.
// On error the returned state equals the input.
func Advance(script Script, state State, answer string, at time.Time) (State, *Question, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return state, Current(script, state), ErrEmptyAnswer
	}
	q := Current(script, state)
	if q == nil {
		return state, nil, ErrScriptComplete
	}

	turns := make([]differential.Turn, len(state.Turns), len(state.Turns)+1)
	copy(turns, state.Turns)
	turns = append(turns, differential.Turn{
		Question:   q.Prompt,
		Answer:     answer,
		Category:   q.Category,
		AnsweredAt: at.UTC(),
	})
	next := State{Cursor: state.Cursor + 1, Turns: turns}
	return next, Current(script, next), nil
}
