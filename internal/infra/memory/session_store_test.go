package memory

import (
	"testing"

	"stagequiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := store.GetOrCreate("quiz-1", domain.Quiz{ID: "quiz-1"})
	if session == nil {
		t.Fatalf("expected session")
	}
	if _, ok := store.Get("quiz-1"); !ok {
		t.Fatalf("expected session present")
	}

	store.DeleteIfEmpty("quiz-1")
	if _, ok := store.Get("quiz-1"); ok {
		t.Fatalf("expected session removed when empty")
	}
}

func TestGetOrCreateReusesExistingSession(t *testing.T) {
	store := NewSessionStore()
	first := store.GetOrCreate("quiz-1", domain.Quiz{ID: "quiz-1"})
	second := store.GetOrCreate("quiz-1", domain.Quiz{ID: "quiz-1"})
	if first != second {
		t.Fatalf("expected the same session instance")
	}
}
