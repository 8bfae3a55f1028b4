// Package console drives the VGA text-mode framebuffer that the BIOS leaves
// behind at boot. Cells are addressed with 0-based (x, y) coordinates; the
// top-left cell is (0, 0).
package console

// Device is implemented by character-cell displays.
type Device interface {
	// Dimensions returns the width and height of the console in cells.
	Dimensions() (uint32, uint32)

	// DefaultColors returns the colors used for cleared cells.
	DefaultColors() (fg, bg uint8)

	// Fill blanks the given rectangle using the given colors. The
	// rectangle is clipped to the console.
	Fill(x, y, width, height uint32, fg, bg uint8)

	// Scroll moves the contents of the console up by lines. The caller is
	// responsible for clearing the rows uncovered at the bottom.
	Scroll(lines uint32)

	// Write stores ch with the given colors at (x, y).
	Write(ch byte, fg, bg uint8, x, y uint32)

	// Read returns the character and colors stored at (x, y).
	Read(x, y uint32) (ch byte, fg, bg uint8)
}

// Cursor draws the mouse pointer on a console by swapping the foreground and
// background colors of the cell beneath it.
type Cursor struct {
	cons Device

	x, y    uint32
	visible bool

	// drawnFg and drawnBg are the colors the cursor left in its cell.
	drawnFg, drawnBg uint8
}

// NewCursor returns a hidden cursor for cons.
func NewCursor(cons Device) *Cursor {
	return &Cursor{cons: cons}
}

// MoveTo erases the cursor from its current cell and draws it at (x, y).
// Coordinates outside the console are clipped.
func (c *Cursor) MoveTo(x, y uint32) {
	if c.visible {
		c.erase()
	}

	w, h := c.cons.Dimensions()
	if x >= w {
		x = w - 1
	}
	if y >= h {
		y = h - 1
	}

	ch, fg, bg := c.cons.Read(x, y)
	c.cons.Write(ch, bg, fg, x, y)
	c.x, c.y, c.visible = x, y, true
	c.drawnFg, c.drawnBg = bg, fg
}

// Position returns the cell the cursor was last drawn at and whether it is
// visible.
func (c *Cursor) Position() (x, y uint32, visible bool) {
	return c.x, c.y, c.visible
}

// erase restores the colors of the cell under the cursor unless something
// was written to the cell since the cursor was drawn.
func (c *Cursor) erase() {
	ch, fg, bg := c.cons.Read(c.x, c.y)
	if fg == c.drawnFg && bg == c.drawnBg {
		c.cons.Write(ch, bg, fg, c.x, c.y)
	}
	c.visible = false
}
