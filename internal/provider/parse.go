package provider

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// thinkingKey matches a "thinking" key with a string value inside model
// output. Some models echo chain-of-thought as an extra JSON field; the
// value is excised before decoding.
var thinkingKey = regexp.MustCompile(`"thinking"\s*:\s*"(?:[^"\\]|\\.)*"\s*,?`)

// ExtractJSON recovers a JSON payload from noisy model text. Models wrap
// JSON in markdown code fences, prepend conversational filler or
// reasoning preambles, and occasionally inline a "thinking" field. The
// recovery steps, in order:
//  1. Trim whitespace and strip a leading/trailing ``` or ```json fence.
//  2. Excise any "thinking": "..." key.
//  3. Slice from the first { or [ to the matching last } or ].
//
// The result is a best-effort candidate; callers still json.Unmarshal it
// and classify failures as ResponseFormat.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if rest, ok := strings.CutPrefix(s, "json"); ok {
			s = rest
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	s = thinkingKey.ReplaceAllString(s, "")

	start := strings.Index(s, "{")
	closer := "}"
	if arr := strings.Index(s, "["); arr != -1 && (start == -1 || arr < start) {
		start = arr
		closer = "]"
	}
	if start == -1 {
		return strings.TrimSpace(s)
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return strings.TrimSpace(s[start:])
	}
	return s[start : end+1]
}

// rawExercise mirrors the model's exercise shape. Any id-like field the
// model hallucinates is deliberately absent: ids are assigned locally.
type rawExercise struct {
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Category        string      `json:"category"`
	Steps           []string    `json:"steps"`
	DurationMinutes json.Number `json:"duration_minutes"`
}

// DecodeExercises parses model output into normalized exercises. Both
// requested framings are accepted: {"exercises": [...]} and a bare
// array. Every exercise receives a freshly generated UUID.
func DecodeExercises(id ID, raw string) ([]Exercise, error) {
	payload := ExtractJSON(raw)

	var items []rawExercise
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		var wrapper struct {
			Exercises []rawExercise `json:"exercises"`
		}
		if err2 := json.Unmarshal([]byte(payload), &wrapper); err2 != nil || wrapper.Exercises == nil {
			return nil, WrapErr(id, ResponseFormat, err, "exercise payload is not valid JSON")
		}
		items = wrapper.Exercises
	}

	if len(items) == 0 {
		return nil, Errf(id, ResponseFormat, "exercise payload contained no exercises")
	}

	exercises := make([]Exercise, 0, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		duration, _ := it.DurationMinutes.Float64()
		exercises = append(exercises, Exercise{
			ID:              uuid.NewString(),
			Title:           it.Title,
			Description:     it.Description,
			Category:        it.Category,
			Steps:           it.Steps,
			DurationMinutes: duration,
		})
	}
	if len(exercises) == 0 {
		return nil, Errf(id, ResponseFormat, "exercise payload contained no usable exercises")
	}
	return exercises, nil
}

// DecodeQuotes parses model output into a list of quotes. Quotes have a
// safe empty default: garbage degrades to an empty list with a logged
// warning instead of an error. Duplicates are dropped and the list is
// capped at 5.
func DecodeQuotes(id ID, raw string) []string {
	payload := ExtractJSON(raw)

	var quotes []string
	if err := json.Unmarshal([]byte(payload), &quotes); err != nil {
		var wrapper struct {
			Quotes []string `json:"quotes"`
		}
		if err2 := json.Unmarshal([]byte(payload), &wrapper); err2 != nil || wrapper.Quotes == nil {
			slog.Warn("quotes payload unparseable, returning empty list", "provider", id, "error", err)
			return []string{}
		}
		quotes = wrapper.Quotes
	}

	seen := make(map[string]struct{}, len(quotes))
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == 5 {
			break
		}
	}
	return out
}
