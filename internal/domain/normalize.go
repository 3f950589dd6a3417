package domain

// Canvas and fallback defaults applied by normalization. Absence of a field
// in a stored document is never an error; it is repaired with these values so
// documents written by older schema versions keep loading.
const (
	DefaultCanvasWidth  = 1920
	DefaultCanvasHeight = 1080
)

// DefaultBackground is the fill used when a document carries none.
func DefaultBackground() Background {
	return Background{Kind: "gradient", Value: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)"}
}

// Normalize repairs a partially-formed page in place and returns it. It is
// idempotent and total: afterwards the elements map exists, all three views
// exist with a background, a canvas size and a local config map, question
// types carry their canonical names, and no child-typed record survives at
// the top level. Callers run it on load and again before any mutation.
func Normalize(page Page) Page {
	if page.PageType == "" {
		page.PageType = PageQuiz
	}
	if page.Elements == nil {
		page.Elements = make(map[string]ElementRecord)
	}
	var stripped []string
	for id, el := range page.Elements {
		if IsChildType(el.Type) {
			// Child widgets exist only at projection time; older documents
			// that persisted one are repaired by dropping the record.
			delete(page.Elements, id)
			stripped = append(stripped, id)
			continue
		}
		if el.Question != nil {
			el.Question.Type = CanonicalQuestionType(el.Question.Type)
		}
		if el.IsQuestion && el.Question == nil {
			el.Question = &QuestionConfig{Type: QuestionText}
		}
		page.Elements[id] = el
	}
	if page.Views == nil {
		page.Views = make(map[ViewName]ViewConfig, len(ViewNames))
	}
	for _, name := range ViewNames {
		view := page.Views[name]
		if view.Background == (Background{}) {
			view.Background = DefaultBackground()
		}
		if view.Size.Width == 0 {
			view.Size.Width = DefaultCanvasWidth
		}
		if view.Size.Height == 0 {
			view.Size.Height = DefaultCanvasHeight
		}
		if view.LocalElements == nil {
			view.LocalElements = make(map[string]LocalElementConfig)
		}
		for _, id := range stripped {
			delete(view.LocalElements, id)
		}
		page.Views[name] = view
	}
	return page
}

// NormalizeQuiz normalizes every page and rewrites page_order to match array
// position (1-based), the externally visible ordering contract.
func NormalizeQuiz(quiz Quiz) Quiz {
	if quiz.Background == (Background{}) {
		quiz.Background = DefaultBackground()
	}
	for i := range quiz.Pages {
		quiz.Pages[i] = Normalize(quiz.Pages[i])
		quiz.Pages[i].PageOrder = i + 1
	}
	return quiz
}

// QuestionTypeOf resolves the question type of a stored element: its own
// question_config wins, otherwise the literal fallback is "text". "image" is
// rewritten to "image_click" at every resolution point.
func QuestionTypeOf(rec ElementRecord) QuestionType {
	if rec.Question != nil && rec.Question.Type != "" {
		return CanonicalQuestionType(rec.Question.Type)
	}
	return QuestionText
}

// FindStopwatchQuestion scans a page for a stopwatch question whose
// configured timer start method matches the given trigger. Used to map media
// play/end events onto the question timer they should start.
func FindStopwatchQuestion(page Page, method TimerStartMethod) (string, bool) {
	for id, el := range page.Elements {
		if !el.IsQuestion || el.Question == nil {
			continue
		}
		if CanonicalQuestionType(el.Question.Type) != QuestionStopwatch {
			continue
		}
		if el.Question.TimerStartMethod == method {
			return id, true
		}
	}
	return "", false
}
