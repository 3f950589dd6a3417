package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeFillsAllViews(t *testing.T) {
	page := Normalize(Page{})

	if page.Elements == nil {
		t.Fatalf("expected elements map to be created")
	}
	for _, name := range ViewNames {
		view, ok := page.Views[name]
		if !ok {
			t.Fatalf("expected view %q to be present", name)
		}
		if view.LocalElements == nil {
			t.Fatalf("expected local configs for view %q", name)
		}
		if view.Size.Width != DefaultCanvasWidth || view.Size.Height != DefaultCanvasHeight {
			t.Fatalf("expected default canvas for view %q, got %+v", name, view.Size)
		}
		if view.Background == (Background{}) {
			t.Fatalf("expected default background for view %q", name)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	pages := []Page{
		{},
		{PageType: PageStatus},
		{
			Elements: map[string]ElementRecord{
				"q1": {Type: ElementRichText, IsQuestion: true},
			},
			Views: map[ViewName]ViewConfig{
				ViewDisplay: {Size: CanvasSize{Width: 800, Height: 600}},
			},
		},
	}
	for i, p := range pages {
		once := Normalize(p)
		twice := Normalize(clonePage(once))
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("page %d: normalize is not idempotent:\nonce:  %+v\ntwice: %+v", i, once, twice)
		}
	}
}

func TestNormalizeCanonicalizesQuestionType(t *testing.T) {
	page := Normalize(Page{
		Elements: map[string]ElementRecord{
			"q1": {
				Type:       ElementImage,
				IsQuestion: true,
				Question:   &QuestionConfig{Type: "image"},
			},
		},
	})
	if got := page.Elements["q1"].Question.Type; got != QuestionImageClick {
		t.Fatalf("expected image_click, got %q", got)
	}
}

func TestNormalizeAddsQuestionConfigForFlaggedElements(t *testing.T) {
	page := Normalize(Page{
		Elements: map[string]ElementRecord{
			"q1": {Type: ElementRichText, IsQuestion: true},
		},
	})
	q := page.Elements["q1"].Question
	if q == nil || q.Type != QuestionText {
		t.Fatalf("expected text question config, got %+v", q)
	}
}

func TestNormalizeStripsStoredChildTypedRecords(t *testing.T) {
	page := Normalize(Page{
		Elements: map[string]ElementRecord{
			"stray": {Type: ElementAnswerInput, LayerOrder: 5},
			"q1":    {Type: ElementRichText, IsQuestion: true},
		},
		Views: map[ViewName]ViewConfig{
			ViewDisplay: {
				LocalElements: map[string]LocalElementConfig{
					"stray": {Config: Position{X: 10, Y: 10}},
				},
			},
		},
	})
	if _, ok := page.Elements["stray"]; ok {
		t.Fatalf("expected stored child-typed record dropped")
	}
	if _, ok := page.Views[ViewDisplay].LocalElements["stray"]; ok {
		t.Fatalf("expected stray local config dropped with its record")
	}
	if _, ok := page.Elements["q1"]; !ok {
		t.Fatalf("expected real element kept")
	}
}

func TestNormalizeQuizRewritesPageOrder(t *testing.T) {
	quiz := NormalizeQuiz(Quiz{Pages: []Page{
		{PageOrder: 7},
		{PageOrder: 7},
		{},
	}})
	for i, p := range quiz.Pages {
		if p.PageOrder != i+1 {
			t.Fatalf("page %d: expected order %d, got %d", i, i+1, p.PageOrder)
		}
	}
}

func TestFindStopwatchQuestion(t *testing.T) {
	page := Page{
		Elements: map[string]ElementRecord{
			"q1": {IsQuestion: true, Question: &QuestionConfig{Type: QuestionStopwatch, TimerStartMethod: TimerStartOnPlay}},
			"q2": {IsQuestion: true, Question: &QuestionConfig{Type: QuestionRadio, TimerStartMethod: TimerStartOnPlay}},
		},
	}
	id, ok := FindStopwatchQuestion(page, TimerStartOnPlay)
	if !ok || id != "q1" {
		t.Fatalf("expected q1, got %q found=%v", id, ok)
	}
	if _, ok := FindStopwatchQuestion(page, TimerStartOnEnd); ok {
		t.Fatalf("expected no on_end stopwatch")
	}
}

func clonePage(p Page) Page {
	out := p
	out.Elements = make(map[string]ElementRecord, len(p.Elements))
	for k, v := range p.Elements {
		out.Elements[k] = v
	}
	out.Views = make(map[ViewName]ViewConfig, len(p.Views))
	for k, v := range p.Views {
		cfg := v
		cfg.LocalElements = make(map[string]LocalElementConfig, len(v.LocalElements))
		for id, lc := range v.LocalElements {
			cfg.LocalElements[id] = lc
		}
		out.Views[k] = cfg
	}
	return out
}
