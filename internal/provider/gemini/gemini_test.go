package gemini

import (
	"context"
	"testing"

	genai "google.golang.org/genai"

	"github.com/havenmind/haven/internal/provider"
)

func TestListModels_MissingKey(t *testing.T) {
	c := New()
	_, err := c.ListModels(context.Background(), "")
	if provider.KindOf(err) != provider.MissingCredential {
		t.Errorf("want MissingCredential, got %v", err)
	}
}

func TestListModels_StaticCatalogIdempotent(t *testing.T) {
	c := New()
	first, err := c.ListModels(context.Background(), "key")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.ListModels(context.Background(), "key")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("catalog changed between calls: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("catalog changed between calls: %v vs %v", first, second)
		}
	}
	if len(first) == 0 {
		t.Fatal("catalog is empty")
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	got := Catalog()
	got[0] = "mutated"
	if Catalog()[0] == "mutated" {
		t.Error("Catalog must return a defensive copy")
	}
}

func TestGenerate_MissingKeyBeforeNetwork(t *testing.T) {
	c := New()
	_, err := c.GenerateText(context.Background(), "gemini-2.5-flash", "", "sys", "user")
	if provider.KindOf(err) != provider.MissingCredential {
		t.Errorf("want MissingCredential, got %v", err)
	}
}

func TestGroundingSources_FiltersIncomplete(t *testing.T) {
	md := &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://example.org/a", Title: "Breathing basics"}},
			{Web: &genai.GroundingChunkWeb{URI: "", Title: "No URL"}},
			{Web: &genai.GroundingChunkWeb{URI: "https://example.org/c", Title: ""}},
			{Web: nil},
			nil,
		},
	}
	got := groundingSources(md)
	if len(got) != 1 {
		t.Fatalf("got %d sources, want 1", len(got))
	}
	if got[0].URL != "https://example.org/a" || got[0].Title != "Breathing basics" {
		t.Errorf("source = %+v", got[0])
	}
}

func TestGroundingSources_NilMetadata(t *testing.T) {
	got := groundingSources(nil)
	if got == nil {
		t.Fatal("sources must be an empty slice, never nil")
	}
	if len(got) != 0 {
		t.Fatalf("got %d sources, want 0", len(got))
	}
}

func TestClassify_APIError(t *testing.T) {
	cases := []struct {
		code int
		want provider.Kind
	}{
		{401, provider.InvalidCredential},
		{429, provider.RateLimited},
		{500, provider.TransportUnavailable},
	}
	for _, tc := range cases {
		err := classify(genai.APIError{Code: tc.code, Message: "x"})
		if provider.KindOf(err) != tc.want {
			t.Errorf("code %d: want %s, got %v", tc.code, tc.want, err)
		}
	}
}
