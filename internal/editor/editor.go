// Package editor applies structural mutations to a quiz page on behalf of
// the authoring tool. Every operation normalizes defensively and returns a
// page that still satisfies the document invariants.
//
// Order assignment (layer_order, appearance_order) scans existing elements
// for the current maximum. That is safe under the single-editor assumption:
// the control client is a per-session singleton quizmaster and the only
// writer of the document.
package editor

import (
	"sort"

	"github.com/google/uuid"

	"stagequiz-service/internal/domain"
)

// LayerAction names a relayering operation.
type LayerAction string

const (
	BringToFront LayerAction = "bringToFront"
	SendForward  LayerAction = "sendForward"
	SendBack     LayerAction = "sendBack"
	SendToBack   LayerAction = "sendToBack"
)

// Axis selects the coordinate an align operation snaps.
type Axis string

const (
	AxisVertical   Axis = "vertical"   // snap x
	AxisHorizontal Axis = "horizontal" // snap y
)

const alignWindow = 10.0 // px

// NewElementID mints an opaque element id.
func NewElementID() string {
	return uuid.NewString()
}

// SetElement creates or updates an element record. Unset appearance and
// layer orders are assigned max-existing+1; an existing element's
// layer_order is preserved on update so edits never silently renumber the
// stack. Child element types are rejected: they exist only at projection
// time.
func SetElement(page domain.Page, id string, rec domain.ElementRecord) (domain.Page, error) {
	if domain.IsChildType(rec.Type) {
		return page, domain.ErrChildElementType
	}
	page = domain.Normalize(page)

	if existing, ok := page.Elements[id]; ok {
		if rec.LayerOrder == 0 {
			rec.LayerOrder = existing.LayerOrder
		}
		if rec.Appearance.Order == 0 {
			rec.Appearance.Order = existing.Appearance.Order
		}
	} else {
		if rec.LayerOrder == 0 {
			rec.LayerOrder = maxLayerOrder(page.Elements) + 1
		}
		if rec.Appearance.Order == 0 {
			rec.Appearance.Order = maxAppearanceOrder(page.Elements) + 1
		}
	}
	if rec.Question != nil {
		rec.Question.Type = domain.CanonicalQuestionType(rec.Question.Type)
	}
	page.Elements[id] = rec
	return page, nil
}

// RemoveElement deletes an element from the page and from every view's
// local configs.
func RemoveElement(page domain.Page, id string) domain.Page {
	page = domain.Normalize(page)
	delete(page.Elements, id)
	for name, view := range page.Views {
		delete(view.LocalElements, id)
		page.Views[name] = view
	}
	return page
}

// SetLocalConfig writes an element's positioning record for one view.
func SetLocalConfig(page domain.Page, view domain.ViewName, id string, cfg domain.LocalElementConfig) (domain.Page, error) {
	page = domain.Normalize(page)
	if _, ok := page.Elements[id]; !ok {
		return page, domain.ErrElementNotFound
	}
	page.Views[view].LocalElements[id] = cfg
	return page, nil
}

// ReorderLayer moves an element within the given view's paint stack and
// rewrites every affected element's layer_order to its new 1-based index.
func ReorderLayer(page domain.Page, view domain.ViewName, id string, action LayerAction) (domain.Page, error) {
	page = domain.Normalize(page)
	if _, ok := page.Elements[id]; !ok {
		return page, domain.ErrElementNotFound
	}

	order := layerOrderedIDs(page, view)
	idx := -1
	for i, other := range order {
		if other == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return page, domain.ErrElementNotFound
	}

	target := idx
	switch action {
	case BringToFront:
		target = len(order) - 1
	case SendForward:
		if idx < len(order)-1 {
			target = idx + 1
		}
	case SendBack:
		if idx > 0 {
			target = idx - 1
		}
	case SendToBack:
		target = 0
	}

	order = append(order[:idx], order[idx+1:]...)
	order = append(order[:target], append([]string{id}, order[target:]...)...)

	for i, other := range order {
		el := page.Elements[other]
		el.LayerOrder = i + 1
		page.Elements[other] = el
	}
	return page, nil
}

// Align snaps every element within a ±10px window of the target's x
// (vertical axis) or y (horizontal axis) in the given view to the target's
// exact coordinate. Each match is written back into whichever config block
// backs that element's role: the main rectangle, a question's nested
// answer_input/answer_display rectangle, or the control view's appearance
// modal. A blanket "set x" would corrupt synthesized children, so the
// backing store is resolved per rectangle.
func Align(page domain.Page, view domain.ViewName, id string, axis Axis) (domain.Page, error) {
	page = domain.Normalize(page)
	cfg := page.Views[view]

	targetLocal, ok := cfg.LocalElements[id]
	if !ok {
		return page, domain.ErrElementNotFound
	}
	target := coordinate(targetLocal.Config, axis)

	// The target is not skipped: its main rectangle snaps to its own
	// coordinate (a no-op), but its nested child rectangles participate in
	// the window like everyone else's.
	for otherID, local := range cfg.LocalElements {
		if inWindow(coordinate(local.Config, axis), target) {
			local.Config = snapped(local.Config, axis, target)
		}
		if local.AnswerInput != nil && inWindow(coordinate(*local.AnswerInput, axis), target) {
			p := snapped(*local.AnswerInput, axis, target)
			local.AnswerInput = &p
		}
		if local.AnswerDisplay != nil && inWindow(coordinate(*local.AnswerDisplay, axis), target) {
			p := snapped(*local.AnswerDisplay, axis, target)
			local.AnswerDisplay = &p
		}
		cfg.LocalElements[otherID] = local
	}

	if cfg.AppearanceControlModal != nil && inWindow(coordinate(*cfg.AppearanceControlModal, axis), target) {
		p := snapped(*cfg.AppearanceControlModal, axis, target)
		cfg.AppearanceControlModal = &p
	}

	page.Views[view] = cfg
	return page, nil
}

func coordinate(p domain.Position, axis Axis) float64 {
	if axis == AxisVertical {
		return p.X
	}
	return p.Y
}

func snapped(p domain.Position, axis Axis, value float64) domain.Position {
	if axis == AxisVertical {
		p.X = value
	} else {
		p.Y = value
	}
	return p
}

func inWindow(v, target float64) bool {
	d := v - target
	return d >= -alignWindow && d <= alignWindow
}

// layerOrderedIDs lists the element ids positioned in the view, ordered by
// current layer_order with id as a deterministic tie-break.
func layerOrderedIDs(page domain.Page, view domain.ViewName) []string {
	cfg := page.Views[view]
	ids := make([]string, 0, len(cfg.LocalElements))
	for id := range cfg.LocalElements {
		if _, ok := page.Elements[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := page.Elements[ids[i]].LayerOrder, page.Elements[ids[j]].LayerOrder
		if li != lj {
			return li < lj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func maxLayerOrder(elements map[string]domain.ElementRecord) int {
	max := 0
	for _, el := range elements {
		if el.LayerOrder > max {
			max = el.LayerOrder
		}
	}
	return max
}

func maxAppearanceOrder(elements map[string]domain.ElementRecord) int {
	max := 0
	for _, el := range elements {
		if el.Appearance.Order > max {
			max = el.Appearance.Order
		}
	}
	return max
}
