package mouse

import (
	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/timer"
)

// Pointer is a cursor position clamped to a Width x Height grid. The origin
// is the top-left cell.
type Pointer struct {
	X, Y          int
	Width, Height int

	// OnMove, if set, is called by TrackPointer after the pointer moves.
	OnMove func(x, y int)
}

// Move applies a mouse delta. The PS/2 y axis points up while the grid y
// axis points down. It returns false if the position did not change.
func (p *Pointer) Move(dx, dy int16) bool {
	x := clamp(p.X+int(dx), p.Width)
	y := clamp(p.Y-int(dy), p.Height)
	if x == p.X && y == p.Y {
		return false
	}

	p.X, p.Y = x, y
	return true
}

func clamp(v, limit int) int {
	switch {
	case v < 0:
		return 0
	case v >= limit:
		return limit - 1
	default:
		return v
	}
}

// TrackPointer returns a future that samples the system mouse on every
// timer tick and logs the pointer whenever it moves. It never completes.
func TrackPointer(p *Pointer) async.Future {
	return async.ForEach[uint64](timer.TickStream{}, func(uint64) bool {
		if dx, dy := TakeDelta(); p.Move(dx, dy) {
			left, right, middle := Buttons()
			kfmt.Logf("mouse", "pointer (%d, %d) buttons l=%t m=%t r=%t", p.X, p.Y, left, middle, right)
			if p.OnMove != nil {
				p.OnMove(p.X, p.Y)
			}
		}
		return true
	})
}
