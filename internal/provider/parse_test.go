package provider

import (
	"errors"
	"strings"
	"testing"
)

const exercisesJSON = `{"exercises":[
  {"title":"Box Breathing","description":"Paced breathing.","category":"Somatic",
   "steps":["Inhale 4","Hold 4","Exhale 4","Hold 4"],"duration_minutes":5},
  {"title":"5-4-3-2-1 Grounding","description":"Sensory anchoring.","category":"Grounding",
   "steps":["Name 5 things you see"],"duration_minutes":3}
]}`

func TestExtractJSON_FenceVariants(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"no fences", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```"},
		{"bare fence", "```\n{\"a\":1}\n```"},
		{"fence with preamble", "Sure, here is the JSON you asked for:\n```json\n{\"a\":1}\n```"},
		{"trailing commentary", "```json\n{\"a\":1}\n```\nLet me know if you need anything else!"},
		{"no fence with preamble", "Here you go: {\"a\":1}"},
		{"padded whitespace", "   \n\t{\"a\":1}\n  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.in); got != `{"a":1}` {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tc.in, got, `{"a":1}`)
			}
		})
	}
}

func TestExtractJSON_ArrayPayload(t *testing.T) {
	in := "```json\n[\"one\",\"two\"]\n```"
	if got := ExtractJSON(in); got != `["one","two"]` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_ThinkingExcised(t *testing.T) {
	in := `{"thinking": "the user seems anxious, I should suggest breathing", "exercises": []}`
	got := ExtractJSON(in)
	if strings.Contains(got, "thinking") {
		t.Errorf("thinking key survived: %q", got)
	}
	if !strings.Contains(got, `"exercises"`) {
		t.Errorf("payload damaged: %q", got)
	}
}

func TestDecodeExercises_RoundTripWithAndWithoutFences(t *testing.T) {
	plain, err := DecodeExercises(Ollama, exercisesJSON)
	if err != nil {
		t.Fatalf("plain payload: %v", err)
	}
	fenced, err := DecodeExercises(Ollama, "```json\n"+exercisesJSON+"\n```")
	if err != nil {
		t.Fatalf("fenced payload: %v", err)
	}
	if len(plain) != len(fenced) {
		t.Fatalf("fenced parse diverged: %d vs %d", len(plain), len(fenced))
	}
	for i := range plain {
		if plain[i].Title != fenced[i].Title || plain[i].Category != fenced[i].Category {
			t.Errorf("exercise %d diverged: %+v vs %+v", i, plain[i], fenced[i])
		}
	}
}

func TestDecodeExercises_BareArrayFraming(t *testing.T) {
	raw := `[{"title":"Body Scan","description":"d","category":"Mindfulness","steps":["lie down"],"duration_minutes":10}]`
	got, err := DecodeExercises(Gemini, raw)
	if err != nil {
		t.Fatalf("bare array: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Body Scan" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeExercises_AssignsLocalIDs(t *testing.T) {
	raw := `[{"id":"hallucinated-1","title":"A","description":"d","category":"Cognitive","steps":[],"duration_minutes":2},
	         {"id":"hallucinated-1","title":"B","description":"d","category":"Cognitive","steps":[],"duration_minutes":2}]`
	got, err := DecodeExercises(Ollama, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d exercises", len(got))
	}
	for _, ex := range got {
		if ex.ID == "" || ex.ID == "hallucinated-1" {
			t.Errorf("model-supplied id must be replaced, got %q", ex.ID)
		}
	}
	if got[0].ID == got[1].ID {
		t.Error("generated ids must be unique")
	}
}

func TestDecodeExercises_Garbage(t *testing.T) {
	_, err := DecodeExercises(OpenRouter, "I'm sorry, I can't help with JSON today.")
	if err == nil {
		t.Fatal("want error for garbage payload")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != ResponseFormat {
		t.Errorf("want ResponseFormat kind, got %v", err)
	}
}

func TestDecodeExercises_EmptyArray(t *testing.T) {
	if _, err := DecodeExercises(Ollama, "[]"); KindOf(err) != ResponseFormat {
		t.Errorf("empty array should be a format error, got %v", err)
	}
}

func TestDecodeQuotes_HappyPath(t *testing.T) {
	got := DecodeQuotes(Ollama, "```json\n[\"Keep going.\",\"One step at a time.\",\"Rest is progress.\"]\n```")
	if len(got) != 3 {
		t.Fatalf("got %d quotes, want 3", len(got))
	}
}

func TestDecodeQuotes_GarbageReturnsEmpty(t *testing.T) {
	got := DecodeQuotes(Ollama, "no json here at all")
	if got == nil {
		t.Fatal("want non-nil empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("got %d quotes, want 0", len(got))
	}
}

func TestDecodeQuotes_DedupAndCap(t *testing.T) {
	got := DecodeQuotes(Gemini, `["a","a","b","c","d","e","f","g"]`)
	if len(got) != 5 {
		t.Fatalf("got %d quotes, want cap of 5", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q] {
			t.Errorf("duplicate quote %q survived", q)
		}
		seen[q] = true
	}
}

func TestDecodeQuotes_WrapperObject(t *testing.T) {
	got := DecodeQuotes(OpenRouter, `{"quotes":["x","y","z"]}`)
	if len(got) != 3 {
		t.Fatalf("got %d quotes from wrapper framing, want 3", len(got))
	}
}
