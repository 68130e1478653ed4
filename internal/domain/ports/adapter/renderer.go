package adapter

import "context"

// DocumentLayout is the structured description handed to the renderer:
// positioned text blocks plus simple tables. The renderer owns the
// concrete output format.
type DocumentLayout struct {
	Title  string
	Blocks []TextBlock
	Tables []Table
	Footer string
}

type TextBlock struct {
	Text string
	Size int  // point size; 0 means default
	Bold bool
}

type Table struct {
	Header []string
	Rows   [][]string
}

// DocumentRenderer turns a layout into durable bytes. Path points at the
// stored document; failure is reported, never silent.
type DocumentRenderer interface {
	Render(ctx context.Context, name string, layout *DocumentLayout) (path string, err error)
}
