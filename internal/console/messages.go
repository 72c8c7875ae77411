package console

import (
	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/render"
)

// Inbound message types.
const (
	MsgResize  = "resize"
	MsgClick   = "click"
	MsgDrag    = "drag"
	MsgRelease = "release"
	MsgDismiss = "dismiss"
	MsgQuery   = "query"
	MsgSearch  = "search"
)

// Size sources a resize message can come from. The page reports which one
// it uses in the ObserverParam query parameter of the websocket URL.
const (
	SizeSourceElement = "element"
	SizeSourceWindow  = "window"

	ObserverParam = "observer"
)

// Outbound message types.
const (
	MsgFrame     = "frame"
	MsgActivated = "activated"
	MsgCleared   = "cleared"
	MsgLoaded    = "loaded"
	MsgError     = "error"
)

// Inbound is a message from the browser. Fields are used according to Type.
type Inbound struct {
	Type   string         `json:"type"`
	X      float64        `json:"x,omitempty"`
	Y      float64        `json:"y,omitempty"`
	Width  float64        `json:"width,omitempty"`
	Height float64        `json:"height,omitempty"`
	Source string         `json:"source,omitempty"`
	ID     string         `json:"id,omitempty"`
	Cypher string         `json:"cypher,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Text   string         `json:"text,omitempty"`
	K      int            `json:"k,omitempty"`
}

// Outbound is a message to the browser.
type Outbound struct {
	Type   string              `json:"type"`
	Frame  *render.DisplayList `json:"frame,omitempty"`
	Node   *graph.GraphNode    `json:"node,omitempty"`
	Report *graph.Report       `json:"report,omitempty"`
	Error  string              `json:"error,omitempty"`
}
