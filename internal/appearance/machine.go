// Package appearance runs the per-page visibility state machine for display
// elements. Each element is Hidden or Visible; the transition to Visible is
// one-way within a page render, except for control-mode elements which the
// quizmaster may toggle both ways. Chained modes (after_previous,
// local_delay) react to an explicit "element became visible" event rather
// than observation of rendered output.
package appearance

import (
	"sort"
	"sync"
	"time"

	"stagequiz-service/internal/domain"
)

// Scheduler abstracts delayed execution so tests can drive time manually.
// The returned cancel func stops the pending call if it has not fired.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// RealScheduler delegates to time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Element is one unit tracked by the machine, in appearance order.
type Element struct {
	ID         string
	Mode       domain.AppearanceMode
	Delay      time.Duration
	IsQuestion bool
}

// Machine drives Hidden -> Visible transitions for one page render. It must
// be stopped when the page is re-rendered or navigated away from; pending
// delay timers are invalidated then, never fired late onto the wrong page.
type Machine struct {
	sched Scheduler

	// OnVisible is published for every transition to Visible.
	OnVisible func(elementID string)
	// OnQuestionVisible fires exactly once per becoming-visible event of a
	// question element, so the server can track question timing.
	OnQuestionVisible func(elementID string)

	mu       sync.Mutex
	items    []Element
	index    map[string]int
	visible  map[string]bool
	notified map[string]bool
	cancels  []func()
	started  bool
	stopped  bool
}

// New builds a machine over elements already sorted by appearance order.
func New(sched Scheduler, items []Element) *Machine {
	m := &Machine{
		sched:    sched,
		items:    items,
		index:    make(map[string]int, len(items)),
		visible:  make(map[string]bool, len(items)),
		notified: make(map[string]bool, len(items)),
	}
	for i, it := range items {
		m.index[it.ID] = i
	}
	return m
}

// FromPage collects the display view's elements in appearance order.
func FromPage(page domain.Page) []Element {
	page = domain.Normalize(page)
	cfg := page.Views[domain.ViewDisplay]
	items := make([]Element, 0, len(cfg.LocalElements))
	for id := range cfg.LocalElements {
		rec, ok := page.Elements[id]
		if !ok {
			continue
		}
		items = append(items, Element{
			ID:         id,
			Mode:       rec.Appearance.Mode(),
			Delay:      time.Duration(rec.Appearance.TimerDelayMS) * time.Millisecond,
			IsQuestion: rec.IsQuestion,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		oi := page.Elements[items[i].ID].Appearance.Order
		oj := page.Elements[items[j].ID].Appearance.Order
		if oi != oj {
			return oi < oj
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// Start begins the page render: on_load elements become visible at once,
// global delays count from now, and the page load stands in as the
// predecessor for a chained element at position zero.
func (m *Machine) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	var fire []string
	for i, it := range m.items {
		switch it.Mode {
		case domain.ModeOnLoad:
			fire = append(fire, it.ID)
		case domain.ModeGlobalDelay:
			m.scheduleLocked(it.ID, it.Delay)
		case domain.ModeLocalDelay:
			if i == 0 {
				m.scheduleLocked(it.ID, it.Delay)
			}
		case domain.ModeAfterPrevious:
			if i == 0 {
				fire = append(fire, it.ID)
			}
		}
	}
	m.mu.Unlock()
	for _, id := range fire {
		m.makeVisible(id)
	}
}

// Stop invalidates the render: all pending timers are cancelled and no
// further transitions occur.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Toggle sets a control-mode element's visibility. Showing runs the normal
// visibility path (and wakes chained successors); hiding resets the element
// so a later show counts as a fresh becoming-visible event.
func (m *Machine) Toggle(id string, show bool) {
	m.mu.Lock()
	idx, ok := m.index[id]
	if !ok || m.items[idx].Mode != domain.ModeControl {
		m.mu.Unlock()
		return
	}
	if !show {
		m.visible[id] = false
		m.notified[id] = false
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.makeVisible(id)
}

// Visible reports the element's current state.
func (m *Machine) Visible(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible[id]
}

func (m *Machine) scheduleLocked(id string, d time.Duration) {
	cancel := m.sched.AfterFunc(d, func() { m.makeVisible(id) })
	m.cancels = append(m.cancels, cancel)
}

func (m *Machine) makeVisible(id string) {
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		m.mu.Lock()
		idx, ok := m.index[cur]
		if !ok || m.stopped || m.visible[cur] {
			m.mu.Unlock()
			continue
		}
		m.visible[cur] = true
		notifyQuestion := m.items[idx].IsQuestion && !m.notified[cur]
		if notifyQuestion {
			m.notified[cur] = true
		}
		if idx+1 < len(m.items) {
			next := m.items[idx+1]
			switch next.Mode {
			case domain.ModeAfterPrevious:
				queue = append(queue, next.ID)
			case domain.ModeLocalDelay:
				m.scheduleLocked(next.ID, next.Delay)
			}
		}
		onVisible, onQuestion := m.OnVisible, m.OnQuestionVisible
		m.mu.Unlock()

		if onVisible != nil {
			onVisible(cur)
		}
		if notifyQuestion && onQuestion != nil {
			onQuestion(cur)
		}
	}
}
