package kittygfx

// WindowSize is the terminal geometry in pixels and character cells
type WindowSize struct {
	Width  int // text area width in pixels
	Height int // text area height in pixels
	Cols   int
	Rows   int
}

// CellWidth returns the width of one cell in pixels, or 0 when Cols is 0
func (w WindowSize) CellWidth() int {
	if w.Cols <= 0 {
		return 0
	}
	return w.Width / w.Cols
}

// CellHeight returns the height of one cell in pixels, or 0 when Rows is 0
func (w WindowSize) CellHeight() int {
	if w.Rows <= 0 {
		return 0
	}
	return w.Height / w.Rows
}

// CellsForImage returns the smallest grid of cells covering an image of the given
// pixel size. It returns (0, 0) when the cell size is unknown.
func (w WindowSize) CellsForImage(pxWidth, pxHeight int) (cols, rows int) {
	cw, ch := w.CellWidth(), w.CellHeight()
	if cw == 0 || ch == 0 {
		return 0, 0
	}
	return ceilDiv(pxWidth, cw), ceilDiv(pxHeight, ch)
}

// Valid reports whether every dimension is positive
func (w WindowSize) Valid() bool {
	return w.Width > 0 && w.Height > 0 && w.Cols > 0 && w.Rows > 0
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
