package domain

// Whiteboard state is client-authored: the server stores whatever geometry
// the last accepted submission carried and never edits it. Field names match
// the canvas client.

type StickyNote struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Content   string  `json:"content"`
	Color     string  `json:"color"`
	CreatedBy string  `json:"createdBy,omitempty"`
}

type Shape struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

// PathPoint is one sample of a freehand stroke; a Path is the whole stroke.
type PathPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

type Path []PathPoint

// WhiteboardSnapshot is the full board: every sub-collection is a wholesale
// replacement target, never merged.
type WhiteboardSnapshot struct {
	StickyNotes []StickyNote `json:"stickyNotes"`
	Shapes      []Shape      `json:"shapes"`
	Paths       []Path       `json:"paths"`
}

// EmptyWhiteboard returns a snapshot with non-nil empty lists so it
// serializes as [] rather than null for clients that have just opened the
// board.
func EmptyWhiteboard() WhiteboardSnapshot {
	return WhiteboardSnapshot{
		StickyNotes: []StickyNote{},
		Shapes:      []Shape{},
		Paths:       []Path{},
	}
}
