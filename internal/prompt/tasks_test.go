package prompt

import (
	"strings"
	"testing"
	"time"
)

func fullProfile() UserProfile {
	return UserProfile{
		Age:                34,
		Location:           "Lisbon",
		SleepHours:         5.5,
		CaffeineIntake:     "high",
		WorkEnvironment:    "office",
		AccessToNature:     "limited",
		ActivityLevel:      "sedentary",
		CopingStyles:       "long walks and loud music",
		LearningModality:   "visual",
		DiagnosedDisorders: "generalized anxiety disorder",
	}
}

// Values that must never leak into a prompt built under essential consent.
var sensitiveMarkers = []string{
	"34", "Lisbon", "5.5", "caffeine", "office", "nature",
	"sedentary", "long walks", "visual", "generalized anxiety",
}

func TestExercises_EssentialConsentDisclosesNothing(t *testing.T) {
	system, _ := Exercises("stress", fullProfile(), ConsentEssential, nil, "en", nil)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(strings.ToLower(system), strings.ToLower(marker)) {
			t.Errorf("essential-consent instruction leaked %q:\n%s", marker, system)
		}
	}
}

func TestExercises_EnhancedConsentWithholdsDiagnoses(t *testing.T) {
	system, _ := Exercises("stress", fullProfile(), ConsentEnhanced, nil, "en", nil)
	if strings.Contains(system, "generalized anxiety disorder") {
		t.Error("enhanced consent must not disclose diagnosed disorders")
	}
	if !strings.Contains(system, "Lisbon") {
		t.Error("enhanced consent should disclose general profile fields")
	}
	if !strings.Contains(system, "pre-sleep") {
		t.Error("low sleep hours should bias toward pre-sleep practices")
	}
	if !strings.Contains(system, "Do not suggest physically demanding movement") {
		t.Error("sedentary activity level should forbid demanding movement")
	}
}

func TestExercises_CompleteConsentDisclosesDiagnoses(t *testing.T) {
	system, _ := Exercises("stress", fullProfile(), ConsentComplete, nil, "en", nil)
	if !strings.Contains(system, "generalized anxiety disorder") {
		t.Error("complete consent should disclose diagnosed disorders")
	}
}

func TestExercises_DocsEmbeddedVerbatim(t *testing.T) {
	docs := []string{
		"Box breathing: inhale four counts, hold four, exhale four.",
		"Worry scheduling contains generalized anxiety.",
	}
	system, _ := Exercises("anxiety", UserProfile{}, ConsentEssential, nil, "en", docs)
	for _, doc := range docs {
		if !strings.Contains(system, doc) {
			t.Errorf("instruction missing verbatim doc %q", doc)
		}
	}
	if !strings.Contains(system, "ground truth") {
		t.Error("instruction should flag reference material as ground truth")
	}
}

func TestExercises_NoDocsNoReferenceSection(t *testing.T) {
	system, _ := Exercises("anxiety", UserProfile{}, ConsentEssential, nil, "en", nil)
	if strings.Contains(system, "Reference material") {
		t.Error("empty doc list must not produce a reference section")
	}
}

func TestFeedbackDirectives_Partition(t *testing.T) {
	fb := FeedbackMap{
		"a": {Rating: 5, Title: "Box Breathing"},
		"b": {Rating: 4, Title: "Body Scan"},
		"c": {Rating: 3, Title: "Journaling"},
		"d": {Rating: 1, Title: "Cold Shower"},
	}
	system, _ := Exercises("stress", UserProfile{}, ConsentEssential, fb, "en", nil)

	if !strings.Contains(system, "Body Scan; Box Breathing") {
		t.Errorf("helpful titles missing or unsorted:\n%s", system)
	}
	if !strings.Contains(system, "Cold Shower") || !strings.Contains(system, "Avoid similar") {
		t.Errorf("unhelpful directive missing:\n%s", system)
	}
	if strings.Contains(system, "Journaling") {
		t.Error("rating-3 title must not appear in either list")
	}
}

func TestFeedbackDirectives_AllNeutralOmitted(t *testing.T) {
	fb := FeedbackMap{
		"a": {Rating: 3, Title: "Box Breathing"},
		"b": {Rating: 3, Title: "Body Scan"},
	}
	system, _ := Exercises("stress", UserProfile{}, ConsentEssential, fb, "en", nil)
	if strings.Contains(system, "helpful") || strings.Contains(system, "Avoid similar") {
		t.Errorf("all-neutral feedback must emit no directive:\n%s", system)
	}
}

func TestForYouSuggestion_TimeBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{16, "afternoon"},
		{17, "evening"},
		{23, "evening"},
	}
	for _, tc := range cases {
		now := time.Date(2025, 6, 1, tc.hour, 30, 0, 0, time.UTC)
		system, _ := ForYouSuggestion(UserProfile{}, ConsentEssential, "en", now)
		if !strings.Contains(system, "It is "+tc.want) {
			t.Errorf("hour %d: want %s bucket, got:\n%s", tc.hour, tc.want, system)
		}
	}
}

func TestLanguageDirective(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"en", "Respond exclusively in English."},
		{"es", "Respond exclusively in Spanish."},
		{"de-DE", "Respond exclusively in German."},
		{"tlh", `Respond exclusively in the language identified by the code "tlh".`},
	}
	for _, tc := range cases {
		if got := languageDirective(tc.code); got != tc.want {
			t.Errorf("languageDirective(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestQuotes_FormatDirective(t *testing.T) {
	system, user := Quotes("en")
	if !strings.Contains(system, "JSON array of 3 to 5") {
		t.Errorf("quotes instruction missing array format directive:\n%s", system)
	}
	if user == "" {
		t.Error("quotes user turn must be non-empty")
	}
}

func TestThoughtChallenge_QuestionsOnly(t *testing.T) {
	system, user := ThoughtChallenge("Everyone thinks I'm a failure", "en")
	if !strings.Contains(system, "no advice") {
		t.Errorf("thought-challenge instruction must forbid advice:\n%s", system)
	}
	if !strings.Contains(user, "Everyone thinks I'm a failure") {
		t.Errorf("user turn missing the thought: %q", user)
	}
}

func TestJournalAnalysis_Structure(t *testing.T) {
	system, user := JournalAnalysis("Today was hard.", "en")
	for _, want := range []string{"150 words", "validate", "reflective question", "encouragement"} {
		if !strings.Contains(system, want) {
			t.Errorf("journal instruction missing %q:\n%s", want, system)
		}
	}
	if !strings.Contains(user, "Today was hard.") {
		t.Errorf("user turn missing entry: %q", user)
	}
}

func TestExercises_Deterministic(t *testing.T) {
	fb := FeedbackMap{
		"a": {Rating: 5, Title: "Zeta"},
		"b": {Rating: 5, Title: "Alpha"},
		"c": {Rating: 1, Title: "Mid"},
	}
	first, _ := Exercises("stress", fullProfile(), ConsentComplete, fb, "en", []string{"doc"})
	for range 10 {
		again, _ := Exercises("stress", fullProfile(), ConsentComplete, fb, "en", []string{"doc"})
		if again != first {
			t.Fatal("instruction construction is not deterministic")
		}
	}
}
