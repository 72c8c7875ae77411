// Package selection tracks which node, if any, has its details open.
package selection

import "github.com/matsen/vulngraph/internal/graph"

// State is the selection state.
type State int

const (
	NoSelection State = iota
	NodeSelected
)

func (s State) String() string {
	switch s {
	case NoSelection:
		return "none"
	case NodeSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithActivateHandler sets the function notified with the full node each
// time a regular node is clicked into or switched to.
func WithActivateHandler(fn func(graph.GraphNode)) Option {
	return func(c *Controller) {
		c.onActivate = fn
	}
}

// WithClearHandler sets the function notified when a selection closes.
func WithClearHandler(fn func()) Option {
	return func(c *Controller) {
		c.onClear = fn
	}
}

// Controller is the selection state machine. It is not safe for concurrent
// use; the owner of the scene drives it.
type Controller struct {
	selected   graph.GraphNode
	state      State
	onActivate func(graph.GraphNode)
	onClear    func()
}

// New creates a controller with nothing selected.
func New(opts ...Option) *Controller {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Click applies a click on node n. Schema nodes are inert. Clicking the
// selected node closes it; clicking any other regular node selects it.
func (c *Controller) Click(n graph.GraphNode) {
	if n.IsSchema() {
		return
	}
	if c.state == NodeSelected && c.selected.ID == n.ID {
		c.clear()
		return
	}
	c.selected = n
	c.state = NodeSelected
	if c.onActivate != nil {
		c.onActivate(n)
	}
}

// Dismiss closes the selection from any state.
func (c *Controller) Dismiss() {
	c.clear()
}

// Reset clears the selection because the result set was replaced.
func (c *Controller) Reset() {
	c.clear()
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Selected returns the selected node.
func (c *Controller) Selected() (graph.GraphNode, bool) {
	return c.selected, c.state == NodeSelected
}

// SelectedID returns the selected node id, or "" when nothing is selected.
func (c *Controller) SelectedID() string {
	if c.state != NodeSelected {
		return ""
	}
	return c.selected.ID
}

func (c *Controller) clear() {
	if c.state == NoSelection {
		return
	}
	c.selected = graph.GraphNode{}
	c.state = NoSelection
	if c.onClear != nil {
		c.onClear()
	}
}
