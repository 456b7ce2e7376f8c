// Package bounce is the bouncing-ball scene drawn under the announcer page:
// a checkerboard, a handful of balls reflecting off the walls, and a key that
// pauses and resumes the motion.
package bounce

import (
	"fmt"
	"math/rand/v2"

	"pageready/internal/render"
)

const (
	ScreenWidth  = 800
	ScreenHeight = 600
	CheckerSize  = 16

	NumBalls     = 7
	MaxSpeed     = 5
	MinRadius    = 25
	MaxRadius    = 60
	Unlimited    = -1
	FrameDelayMs = 25
)

// Palette lists the ball colors, 0xRRGGBBAA.
var Palette = []render.Pixel{
	0xE2275Eff,
	0x752A2Eff,
	0x83B23Dff,
	0xD1100Fff,
	0xDD651Bff,

	0xff0000ff,
	0x00ff00ff,
	0x0000ffff,
	0xff00ffff,
	0xffffffff,
	0x808080ff,
}

// RandRange returns a value in [min, max). It panics when the range is empty.
func RandRange(rng *rand.Rand, min, max int) int {
	if max <= min {
		panic(fmt.Sprintf("bounce: empty range [%d, %d)", min, max))
	}
	return rng.IntN(max-min) + min
}

// Ball is a circle moving by (DX, DY) each simulation step.
type Ball struct {
	R, X, Y, DX, DY int
	Color           render.Pixel
}

// NewBall places a ball fully inside a w x h screen with a random radius,
// velocity and palette color.
func NewBall(rng *rand.Rand, w, h int) Ball {
	var b Ball
	b.R = RandRange(rng, MinRadius, MaxRadius)
	b.X = RandRange(rng, b.R, w-b.R-1)
	b.Y = RandRange(rng, b.R, h-b.R-1)
	b.DX = RandRange(rng, -MaxSpeed, MaxSpeed)
	b.DY = RandRange(rng, -MaxSpeed, MaxSpeed)
	b.Color = Palette[RandRange(rng, 0, len(Palette))]
	return b
}

// Move reverses any velocity component whose wall the ball touches, then
// steps once.
func (b *Ball) Move(w, h int) {
	if b.X+b.R >= w || b.X-b.R < 0 {
		b.DX = -b.DX
	}
	if b.Y+b.R >= h || b.Y-b.R < 0 {
		b.DY = -b.DY
	}
	b.X += b.DX
	b.Y += b.DY
}

// Draw fills the ball with its color made opaque and outlines it in white.
func (b *Ball) Draw(buf *render.Buffer) {
	r, g, bl := render.Components(b.Color)
	buf.FillCircle(render.RGBA(r, g, bl, 255), b.X, b.Y, b.R)
	buf.Circle(0xffffffff, b.X, b.Y, b.R)
}

func (b Ball) String() string {
	return fmt.Sprintf("x = %d, y = %d, r = %d, dx = %d, dy = %d, c=%x", b.X, b.Y, b.R, b.DX, b.DY, uint32(b.Color))
}
