package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	exercisesRole = "You are a compassionate, evidence-informed mental-wellness coach. " +
		"You suggest practical coping exercises. You never diagnose, never prescribe " +
		"medication, and never present yourself as a substitute for professional care."

	journalRole = "You are a warm, attentive journaling companion. You respond to a " +
		"journal entry the way a skilled counselor would: you validate, you notice, " +
		"you ask, you encourage. You never diagnose or give medical advice."

	forYouRole = "You are a gentle wellness companion offering one small, concrete " +
		"suggestion the user can act on right now. One suggestion only, two to three " +
		"sentences, no lists."

	thoughtRole = "You are a Socratic thinking partner trained in cognitive " +
		"restructuring. You help the user examine a troubling thought by asking " +
		"questions. You never tell them what to think and never give advice."

	quotesRole = "You curate short motivational quotes for someone working on their " +
		"mental wellbeing. Quotes must be gentle and grounded, never toxic positivity."
)

// exercisesFormat pins the exact output shape. The decoder tolerates both
// the object framing requested here and a bare array, since some models
// ignore the wrapper.
const exercisesFormat = `Respond with ONLY a JSON object of the form {"exercises": [...]}. ` +
	`Each element of the array must have exactly these fields: ` +
	`"title" (string), "description" (string), ` +
	`"category" (one of "Mindfulness", "Cognitive", "Somatic", "Behavioral", "Grounding"), ` +
	`"steps" (array of strings, in execution order), ` +
	`"duration_minutes" (number). ` +
	`Return between 2 and 4 exercises. ` +
	`Do not output anything outside the JSON object: no prose, no explanations, no markdown fences.`

const journalFormat = "Respond in free-form prose of at most 150 words, structured in this order: " +
	"first validate what the writer is feeling, then gently name one pattern you notice, " +
	"then ask exactly one reflective question, and close with a short encouragement. " +
	"No bullet points, no headings, no JSON."

const thoughtFormat = "Respond with ONLY a bulleted list of 4 to 6 Socratic questions " +
	"that help examine the thought for evidence, alternative explanations, and proportion. " +
	"Questions only: no advice, no interpretations, no reassurance, no preamble."

const quotesFormat = `Respond with ONLY a JSON array of 3 to 5 unique short motivational ` +
	`quotes as plain strings, without attribution. ` +
	`Do not output anything outside the JSON array.`

// Exercises builds the (system instruction, user turn) pair for the
// personalized-exercises task. Retrieved knowledge chunks are embedded
// verbatim and flagged as ground truth.
func Exercises(symptoms string, profile UserProfile, consent ConsentLevel, feedback FeedbackMap, language string, docs []string) (string, string) {
	b := &Builder{}
	b.Add(exercisesRole)
	b.Add(languageDirective(language))

	if len(docs) > 0 {
		b.Add("Reference material follows. Treat it as ground truth and prioritize techniques drawn from it over your own suggestions:")
		for i, doc := range docs {
			b.Addf("[Reference %d] %s", i+1, doc)
		}
	}

	b.AddAll(profileDirectives(profile, consent))
	b.AddAll(feedbackDirectives(feedback))
	b.Add(exercisesFormat)

	user := fmt.Sprintf("My current symptoms and state: %s", symptoms)
	return b.String(), user
}

// JournalAnalysis builds the pair for journal-entry feedback.
func JournalAnalysis(entry, language string) (string, string) {
	b := &Builder{}
	b.Add(journalRole)
	b.Add(languageDirective(language))
	b.Add(journalFormat)

	user := fmt.Sprintf("Here is my journal entry:\n\n%s", entry)
	return b.String(), user
}

// ForYouSuggestion builds the pair for the "for you" task. The tone is
// keyed to a coarse time-of-day bucket computed from now (host clock at
// call time; callers inject a fixed clock in tests).
func ForYouSuggestion(profile UserProfile, consent ConsentLevel, language string, now time.Time) (string, string) {
	b := &Builder{}
	b.Add(forYouRole)
	b.Add(languageDirective(language))
	b.AddAll(profileDirectives(profile, consent))
	b.Add(timeOfDayDirective(now))

	user := "Give me one small wellbeing suggestion for right now."
	return b.String(), user
}

// ThoughtChallenge builds the pair for the thought-challenging task.
func ThoughtChallenge(thought, language string) (string, string) {
	b := &Builder{}
	b.Add(thoughtRole)
	b.Add(languageDirective(language))
	b.Add(thoughtFormat)

	user := fmt.Sprintf("The thought I keep having: %s", thought)
	return b.String(), user
}

// Quotes builds the pair for the motivational-quotes task.
func Quotes(language string) (string, string) {
	b := &Builder{}
	b.Add(quotesRole)
	b.Add(languageDirective(language))
	b.Add(quotesFormat)

	return b.String(), "Give me a few motivational quotes."
}

// profileDirectives renders one directive sentence per present profile
// field, gated by the consent level: essential discloses nothing,
// enhanced and complete disclose general fields, diagnosed disorders
// require complete.
func profileDirectives(p UserProfile, consent ConsentLevel) []string {
	if !consent.allowsProfile() {
		return nil
	}

	b := &Builder{}
	if p.Age > 0 {
		b.Addf("The user is %d years old; keep suggestions age-appropriate.", p.Age)
	}
	if p.Location != "" {
		b.Addf("The user lives in %s; you may reference the local context when it helps.", p.Location)
	}
	if p.SleepHours > 0 {
		if p.SleepHours < 6 {
			b.Addf("The user sleeps about %.1f hours per night, which is low; bias toward calming, pre-sleep practices such as breathing or body scans.", p.SleepHours)
		} else {
			b.Addf("The user sleeps about %.1f hours per night.", p.SleepHours)
		}
	}
	switch strings.ToLower(p.CaffeineIntake) {
	case "high":
		b.Add("The user's caffeine intake is high; where relevant, favor practices that lower physical arousal and consider mentioning caffeine timing.")
	case "moderate":
		b.Add("The user's caffeine intake is moderate.")
	case "low", "none":
		b.Add("The user consumes little or no caffeine; do not suggest caffeine reduction.")
	}
	switch strings.ToLower(p.WorkEnvironment) {
	case "office":
		b.Add("The user works in an office; include discreet practices that work at a desk.")
	case "remote":
		b.Add("The user works from home; practices can assume privacy and flexibility.")
	case "outdoor":
		b.Add("The user works outdoors.")
	case "shift":
		b.Add("The user works shifts; avoid practices tied to a fixed daily schedule.")
	case "student":
		b.Add("The user is a student; short practices that fit between classes work best.")
	}
	switch strings.ToLower(p.AccessToNature) {
	case "yes":
		b.Add("The user has easy access to nature; outdoor and nature-based exercises are welcome.")
	case "limited":
		b.Add("The user has limited access to nature; prefer indoor alternatives but an occasional outdoor option is fine.")
	case "no":
		b.Add("The user has no practical access to nature; do not suggest exercises that require going outside.")
	}
	switch strings.ToLower(p.ActivityLevel) {
	case "sedentary":
		b.Add("The user is sedentary; do not suggest physically demanding movement. Prefer seated or lying practices.")
	case "light":
		b.Add("The user's activity level is light; gentle movement such as walking or stretching is appropriate.")
	case "moderate", "active":
		b.Add("The user is physically active; movement-based exercises are a good fit.")
	}
	if p.CopingStyles != "" {
		b.Addf("Coping approaches that already work for the user: %s. Build on these.", p.CopingStyles)
	}
	switch strings.ToLower(p.LearningModality) {
	case "visual":
		b.Add("The user learns visually; favor imagery, visualization, and written steps.")
	case "auditory":
		b.Add("The user learns by listening; favor spoken, sound-based, or rhythm-based practices.")
	case "kinesthetic":
		b.Add("The user learns by doing; favor movement, touch, and physically anchored practices.")
	}
	if p.DiagnosedDisorders != "" && consent.allowsDiagnoses() {
		b.Addf("Diagnosed conditions to account for (adapt suggestions, never diagnose or treat): %s.", p.DiagnosedDisorders)
	}
	return b.directives
}

// feedbackDirectives partitions prior ratings into helpful (>=4) and
// unhelpful (<=2) title lists. Titles are sorted for determinism. Ratings
// of 3 contribute nothing; when both lists are empty, no directive is
// emitted at all.
func feedbackDirectives(feedback FeedbackMap) []string {
	var helpful, unhelpful []string
	for _, fb := range feedback {
		if fb.Title == "" {
			continue
		}
		switch {
		case fb.Rating >= 4:
			helpful = append(helpful, fb.Title)
		case fb.Rating <= 2:
			unhelpful = append(unhelpful, fb.Title)
		}
	}
	if len(helpful) == 0 && len(unhelpful) == 0 {
		return nil
	}
	sort.Strings(helpful)
	sort.Strings(unhelpful)

	b := &Builder{}
	if len(helpful) > 0 {
		b.Addf("The user previously found these exercises helpful: %s. Prioritize similar approaches.", strings.Join(helpful, "; "))
	}
	if len(unhelpful) > 0 {
		b.Addf("The user previously found these exercises unhelpful: %s. Avoid similar approaches.", strings.Join(unhelpful, "; "))
	}
	return b.directives
}

// timeOfDayDirective buckets the clock into morning (<12:00), afternoon
// (12:00-17:00), and evening (>=17:00) and sets the tone accordingly.
func timeOfDayDirective(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "It is morning for the user; use an energizing, forward-looking tone suited to starting the day."
	case h < 17:
		return "It is afternoon for the user; use a steady tone suited to a midday reset."
	default:
		return "It is evening for the user; use a calm, winding-down tone."
	}
}
