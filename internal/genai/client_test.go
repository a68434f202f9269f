package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reino-app/bestias-backend/internal/archetype"
)

// fakeCompletions serves the chat-completions endpoint with a canned content
// string and records the last request body.
type fakeCompletions struct {
	content string
	last    map[string]any
}

func (f *fakeCompletions) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.last = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&f.last)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  f.last["model"],
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": f.content}, "finish_reason": "stop"},
			},
		})
	}
}

func newTestClient(t *testing.T, f *fakeCompletions) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewOpenAI(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		FastModel:   "fast-model",
		StrongModel: "strong-model",
		Timeout:     5 * time.Second,
	})
}

func TestResolveArchetype_ParsesAndValidates(t *testing.T) {
	f := &fakeCompletions{content: `{"animal":"Fox","element":"Огонь","genderForm":"female"}`}
	c := newTestClient(t, f)

	got, err := c.ResolveArchetype(context.Background(), "user prompt", "ru")
	if err != nil {
		t.Fatalf("ResolveArchetype: %v", err)
	}
	want := archetype.Triple{Animal: "Fox", Element: archetype.ElementFire, GenderForm: archetype.GenderFemale}
	if got != want {
		t.Fatalf("triple = %+v, want %+v", got, want)
	}
	if f.last["model"] != "fast-model" {
		t.Fatalf("resolver used model %v, want fast-model", f.last["model"])
	}
}

func TestResolveArchetype_RejectsInventedAnimal(t *testing.T) {
	f := &fakeCompletions{content: `{"animal":"Phoenix","element":"Огонь"}`}
	c := newTestClient(t, f)

	if _, err := c.ResolveArchetype(context.Background(), "p", "ru"); !errors.Is(err, archetype.ErrInvalidAnimal) {
		t.Fatalf("err = %v, want ErrInvalidAnimal", err)
	}
}

func TestProfiles_ModelSelectionAndTrim(t *testing.T) {
	f := &fakeCompletions{content: "  profile text \n"}
	c := newTestClient(t, f)

	text, err := c.ShortProfile(context.Background(), "p", "en")
	if err != nil {
		t.Fatalf("ShortProfile: %v", err)
	}
	if text != "profile text" {
		t.Fatalf("short text = %q", text)
	}
	if f.last["model"] != "fast-model" {
		t.Fatalf("short profile used %v", f.last["model"])
	}

	if _, err := c.FullProfile(context.Background(), "p", "en"); err != nil {
		t.Fatalf("FullProfile: %v", err)
	}
	if f.last["model"] != "strong-model" {
		t.Fatalf("full profile used %v", f.last["model"])
	}

	if _, err := c.CompatibilityText(context.Background(), CompatibilitySystemPromptV3, "payload"); err != nil {
		t.Fatalf("CompatibilityText: %v", err)
	}
	if f.last["model"] != "strong-model" {
		t.Fatalf("compatibility used %v", f.last["model"])
	}
}

func TestComplete_EmptyOutput(t *testing.T) {
	f := &fakeCompletions{content: "   "}
	c := newTestClient(t, f)

	if _, err := c.ShortProfile(context.Background(), "p", "ru"); !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("err = %v, want ErrEmptyOutput", err)
	}
}
