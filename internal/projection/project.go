// Package projection materializes a page into the ordered element list one
// view renders. Child widgets (answer inputs, answer displays, the
// appearance control) exist only here: they are computed from a parent
// question element plus the per-view config blocks and are never part of the
// stored document.
package projection

import (
	"log"
	"sort"

	"stagequiz-service/internal/domain"
)

// Default child-widget rectangles applied when a view carries no explicit
// config for them.
var defaultAnswerInputSize = domain.Position{Width: 400, Height: 100}
var defaultStopwatchInputSize = domain.Position{Width: 370, Height: 120}
var defaultAnswerDisplaySize = domain.Position{Width: 600, Height: 300}
var defaultAppearanceControl = domain.Position{X: 50, Y: 100, Width: 400, Height: 300}

// appearanceControlLayer forces the singleton widget to paint on top.
const appearanceControlLayer = 1000

// RenderElement is one positioned, type-resolved unit of a projected view.
type RenderElement struct {
	ID           string                  `json:"id"`
	ParentID     string                  `json:"parentId,omitempty"` // set on synthesized children
	Type         domain.ElementType      `json:"type"`
	Position     domain.Position         `json:"position"`
	LayerOrder   int                     `json:"layerOrder"`
	Appearance   domain.AppearanceConfig `json:"appearanceConfig"`
	Properties   domain.Properties       `json:"properties"`
	Question     *domain.QuestionConfig  `json:"questionConfig,omitempty"`
	QuestionType domain.QuestionType     `json:"questionType,omitempty"` // resolved, canonical
}

// Project derives the render list for one view of a page, sorted ascending
// by layer order. The appearance order stored on each element is carried
// through untouched; it drives visibility, never paint order.
func Project(page domain.Page, view domain.ViewName) []RenderElement {
	page = domain.Normalize(page)
	switch view {
	case domain.ViewParticipant:
		return projectParticipant(page)
	case domain.ViewControl:
		return projectControl(page)
	default:
		return projectDisplay(page)
	}
}

func projectDisplay(page domain.Page) []RenderElement {
	cfg := page.Views[domain.ViewDisplay]
	out := make([]RenderElement, 0, len(cfg.LocalElements))
	for _, id := range sortedIDs(cfg.LocalElements) {
		rec, ok := page.Elements[id]
		if !ok {
			log.Printf("projection: display config references missing element %s, skipping", id)
			continue
		}
		out = append(out, mainElement(id, rec, cfg.LocalElements[id].Config))
	}
	sortByLayer(out)
	return out
}

func projectParticipant(page domain.Page) []RenderElement {
	cfg := page.Views[domain.ViewParticipant]
	out := make([]RenderElement, 0, len(cfg.LocalElements))
	for _, id := range sortedIDs(cfg.LocalElements) {
		rec, ok := page.Elements[id]
		if !ok {
			log.Printf("projection: participant config references missing element %s, skipping", id)
			continue
		}
		if rec.IsQuestion {
			continue // replaced by a synthesized answer input below
		}
		out = append(out, mainElement(id, rec, cfg.LocalElements[id].Config))
	}
	for _, id := range sortedElementIDs(page.Elements) {
		rec := page.Elements[id]
		if !rec.IsQuestion {
			continue
		}
		out = append(out, answerInput(id, rec, cfg.LocalElements[id]))
	}
	sortByLayer(out)
	return out
}

// projectControl emits only synthesized widgets: one answer display per
// question and exactly one appearance control, forced on top.
func projectControl(page domain.Page) []RenderElement {
	cfg := page.Views[domain.ViewControl]
	out := make([]RenderElement, 0, 4)
	for _, id := range sortedElementIDs(page.Elements) {
		rec := page.Elements[id]
		if !rec.IsQuestion {
			continue
		}
		out = append(out, answerDisplay(id, rec, cfg.LocalElements[id]))
	}

	modal := defaultAppearanceControl
	if cfg.AppearanceControlModal != nil {
		modal = *cfg.AppearanceControlModal
	}
	out = append(out, RenderElement{
		ID:         string(domain.ElementAppearanceControl),
		Type:       domain.ElementAppearanceControl,
		Position:   modal,
		LayerOrder: appearanceControlLayer,
	})
	sortByLayer(out)
	return out
}

func mainElement(id string, rec domain.ElementRecord, pos domain.Position) RenderElement {
	el := RenderElement{
		ID:         id,
		Type:       rec.Type,
		Position:   pos,
		LayerOrder: rec.LayerOrder,
		Appearance: rec.Appearance,
		Properties: resolveMedia(rec.Properties),
		Question:   rec.Question,
	}
	if rec.IsQuestion {
		el.QuestionType = domain.QuestionTypeOf(rec)
	}
	return el
}

func answerInput(parentID string, rec domain.ElementRecord, local domain.LocalElementConfig) RenderElement {
	qt := domain.QuestionTypeOf(rec)
	pos := defaultAnswerInputSize
	if qt == domain.QuestionStopwatch {
		pos = defaultStopwatchInputSize
	}
	pos.X, pos.Y = local.Config.X, local.Config.Y
	if local.AnswerInput != nil {
		pos = *local.AnswerInput
	}
	return RenderElement{
		ID:           parentID + ":answer_input",
		ParentID:     parentID,
		Type:         domain.ElementAnswerInput,
		Position:     pos,
		LayerOrder:   rec.LayerOrder,
		Appearance:   rec.Appearance,
		Properties:   resolveMedia(rec.Properties),
		Question:     rec.Question,
		QuestionType: qt,
	}
}

func answerDisplay(parentID string, rec domain.ElementRecord, local domain.LocalElementConfig) RenderElement {
	pos := defaultAnswerDisplaySize
	pos.X, pos.Y = local.Config.X, local.Config.Y
	if local.AnswerDisplay != nil {
		pos = *local.AnswerDisplay
	}
	return RenderElement{
		ID:           parentID + ":answer_display",
		ParentID:     parentID,
		Type:         domain.ElementAnswerDisplay,
		Position:     pos,
		LayerOrder:   rec.LayerOrder,
		Question:     rec.Question,
		QuestionType: domain.QuestionTypeOf(rec),
	}
}

// resolveMedia rewrites bare media filenames to the serving path without
// touching the stored record.
func resolveMedia(props domain.Properties) domain.Properties {
	if props.Media == nil {
		return props
	}
	media := *props.Media
	media.Source = domain.ResolveMediaSource(media.Source)
	props.Media = &media
	return props
}

// sortedIDs gives a deterministic iteration order for config maps; the
// subsequent stable layer sort then preserves it for equal layer values.
func sortedIDs(m map[string]domain.LocalElementConfig) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedElementIDs(m map[string]domain.ElementRecord) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortByLayer(elements []RenderElement) {
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].LayerOrder < elements[j].LayerOrder
	})
}
