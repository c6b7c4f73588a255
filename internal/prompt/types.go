// Package prompt assembles provider-neutral system instructions and user
// turns for each generation task. Construction is deterministic: the same
// inputs always yield the same strings.
package prompt

// ConsentLevel gates how much personal profile data may be disclosed in
// a prompt.
type ConsentLevel string

const (
	ConsentEssential ConsentLevel = "essential"
	ConsentEnhanced  ConsentLevel = "enhanced"
	ConsentComplete  ConsentLevel = "complete"
)

// Valid reports whether the level is one of the three known tiers.
func (c ConsentLevel) Valid() bool {
	switch c {
	case ConsentEssential, ConsentEnhanced, ConsentComplete:
		return true
	}
	return false
}

// allowsProfile reports whether general profile fields may be inlined.
func (c ConsentLevel) allowsProfile() bool {
	return c == ConsentEnhanced || c == ConsentComplete
}

// allowsDiagnoses reports whether diagnosed disorders may be inlined.
// Complete consent only.
func (c ConsentLevel) allowsDiagnoses() bool {
	return c == ConsentComplete
}

// UserProfile carries optional personalization hints. Every field is
// advisory; zero values mean "not provided". The profile is owned by the
// caller and never mutated here.
type UserProfile struct {
	Age                int     `json:"age,omitempty"`
	Location           string  `json:"location,omitempty"`
	SleepHours         float64 `json:"sleepHours,omitempty"`
	CaffeineIntake     string  `json:"caffeineIntake,omitempty"`     // none | low | moderate | high
	WorkEnvironment    string  `json:"workEnvironment,omitempty"`    // office | remote | outdoor | shift | student
	AccessToNature     string  `json:"accessToNature,omitempty"`     // yes | limited | no
	ActivityLevel      string  `json:"activityLevel,omitempty"`      // sedentary | light | moderate | active
	CopingStyles       string  `json:"copingStyles,omitempty"`       // free text
	LearningModality   string  `json:"learningModality,omitempty"`   // visual | auditory | kinesthetic
	DiagnosedDisorders string  `json:"diagnosedDisorders,omitempty"` // free text
}

// Feedback is one prior rating of a generated exercise.
type Feedback struct {
	Rating int    `json:"rating"` // 1-5
	Title  string `json:"title"`
}

// FeedbackMap maps exercise IDs to their feedback. Only titles ever reach
// a provider; the raw structure stays local.
type FeedbackMap map[string]Feedback
