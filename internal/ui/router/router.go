package router

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/defilend/internal/ui"
)

// Screen represents a screen that can be navigated to
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// Factory builds the screen for a route.
type Factory func(route ui.Route) (Screen, bool)

// Router manages navigation between screens using a stack-based approach.
// The bottom screen is never popped.
type Router struct {
	stack   []Screen
	routes  []ui.Route
	factory Factory
	width   int
	height  int
}

func New(root ui.Route, factory Factory) *Router {
	r := &Router{factory: factory}
	if s, ok := factory(root); ok {
		r.stack = []Screen{s}
		r.routes = []ui.Route{root}
	}
	return r
}

func (r *Router) Init() tea.Cmd {
	if cur := r.Current(); cur != nil {
		return cur.Init()
	}
	return nil
}

// Update handles navigation and hands everything else to the current screen.
func (r *Router) Update(msg tea.Msg) (*Router, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.RouterMsg:
		return r, r.Navigate(msg.To)

	case tea.WindowSizeMsg:
		r.SetSize(msg.Width, msg.Height)
		return r, nil

	case tea.KeyMsg:
		if msg.String() == "esc" && r.CanGoBack() {
			return r, r.Pop()
		}
	}

	cur := r.Current()
	if cur == nil {
		return r, nil
	}
	next, cmd := cur.Update(msg)
	r.stack[len(r.stack)-1] = next
	return r, cmd
}

// Broadcast delivers msg to every screen on the stack, so screens below the
// top stay current.
func (r *Router) Broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i, s := range r.stack {
		next, cmd := s.Update(msg)
		r.stack[i] = next
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (r *Router) View() string {
	if cur := r.Current(); cur != nil {
		return cur.View()
	}
	return "No screen available"
}

func (r *Router) SetSize(width, height int) {
	r.width = width
	r.height = height
	for _, s := range r.stack {
		s.SetSize(width, height)
	}
}

// Navigate shows route. A route already on the stack is returned to by
// popping the screens above it.
func (r *Router) Navigate(route ui.Route) tea.Cmd {
	for i := len(r.routes) - 1; i >= 0; i-- {
		if r.routes[i] == route {
			r.stack = r.stack[:i+1]
			r.routes = r.routes[:i+1]
			return r.stack[i].Init()
		}
	}
	s, ok := r.factory(route)
	if !ok {
		return nil
	}
	return r.Push(route, s)
}

// Push adds a new screen to the navigation stack
func (r *Router) Push(route ui.Route, screen Screen) tea.Cmd {
	screen.SetSize(r.width, r.height)
	r.stack = append(r.stack, screen)
	r.routes = append(r.routes, route)
	return screen.Init()
}

// Pop removes the current screen from the stack
func (r *Router) Pop() tea.Cmd {
	if !r.CanGoBack() {
		return nil
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.routes = r.routes[:len(r.routes)-1]

	cur := r.stack[len(r.stack)-1]
	cur.SetSize(r.width, r.height)
	return cur.Init()
}

func (r *Router) Current() Screen {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

// CurrentRoute returns the route of the top screen.
func (r *Router) CurrentRoute() ui.Route {
	if len(r.routes) == 0 {
		return ui.RouteDashboard
	}
	return r.routes[len(r.routes)-1]
}

func (r *Router) Depth() int {
	return len(r.stack)
}

func (r *Router) CanGoBack() bool {
	return len(r.stack) > 1
}
