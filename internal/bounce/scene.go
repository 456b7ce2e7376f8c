package bounce

import (
	"math/rand/v2"

	"pageready/internal/announce"
	"pageready/internal/logging"
	"pageready/internal/render"
)

// Key press messages.
const (
	MsgFinished   = "Key Pressed. Finished!"
	MsgRestarting = "Key Pressed. Restarting!"
)

// Config sizes and paces a Scene.
type Config struct {
	Width        int
	Height       int
	Balls        int
	FrameDelayMs float64
	// MaxFrames caps simulation steps; Unlimited removes the cap.
	MaxFrames    int
	CenterColumn bool
	Background1  render.Pixel
	Background2  render.Pixel
}

// DefaultConfig is the 800x600 seven-ball scene.
func DefaultConfig() Config {
	return Config{
		Width:        ScreenWidth,
		Height:       ScreenHeight,
		Balls:        NumBalls,
		FrameDelayMs: FrameDelayMs,
		MaxFrames:    Unlimited,
		Background1:  render.RGBA(0, 0, 80, 255),
		Background2:  render.RGBA(40, 40, 40, 255),
	}
}

// Scene owns the buffer and the balls. It is driven by Frame from a single
// goroutine (or the browser's animation callback).
type Scene struct {
	cfg   Config
	buf   *render.Buffer
	balls []Ball
	sink  announce.Sink
	rng   *rand.Rand

	Finished      bool
	FrameCount    int
	lastFrameTime float64
}

// NewScene creates the balls. Key press messages go to sink, which may be nil.
func NewScene(cfg Config, rng *rand.Rand, sink announce.Sink) *Scene {
	s := &Scene{
		cfg:  cfg,
		buf:  render.NewBuffer(cfg.Width, cfg.Height),
		sink: sink,
		rng:  rng,
	}
	for i := 0; i < cfg.Balls; i++ {
		b := NewBall(rng, cfg.Width, cfg.Height)
		logging.RenderDebug("ball %d: %s", i, b)
		s.balls = append(s.balls, b)
	}
	return s
}

// Buffer is the surface Frame draws into.
func (s *Scene) Buffer() *render.Buffer { return s.buf }

// Balls returns a copy of the current balls.
func (s *Scene) Balls() []Ball {
	out := make([]Ball, len(s.balls))
	copy(out, s.balls)
	return out
}

// Frame redraws the scene at clock nowMs and advances the simulation one step
// when at least FrameDelayMs passed since the last step. It reports whether
// the balls moved.
func (s *Scene) Frame(nowMs float64) bool {
	s.drawBackground()
	if s.cfg.CenterColumn {
		s.drawCenterColumn()
	}
	for i := range s.balls {
		s.balls[i].Draw(s.buf)
	}

	if s.Finished {
		return false
	}
	if nowMs-s.lastFrameTime < s.cfg.FrameDelayMs {
		return false
	}
	if s.cfg.MaxFrames != Unlimited && s.FrameCount >= s.cfg.MaxFrames {
		return false
	}
	for i := range s.balls {
		s.balls[i].Move(s.cfg.Width, s.cfg.Height)
	}
	s.FrameCount++
	s.lastFrameTime = nowMs
	return true
}

// KeyPress toggles Finished.
func (s *Scene) KeyPress() {
	msg := MsgFinished
	if s.Finished {
		msg = MsgRestarting
	}
	s.Finished = !s.Finished
	logging.Render("key press: finished=%v after %d frames", s.Finished, s.FrameCount)
	if s.sink != nil {
		s.sink.Line(msg)
	}
}

func (s *Scene) drawBackground() {
	for row := 0; row < s.buf.Height; row++ {
		yChk := (row / CheckerSize) % 2
		line := s.buf.Pix[row*s.buf.RowPixels:]
		for col := 0; col < s.buf.Width; col++ {
			if (col/CheckerSize)%2 == yChk {
				line[col] = s.cfg.Background1
			} else {
				line[col] = s.cfg.Background2
			}
		}
	}
}

// drawCenterColumn draws a 75x75 framed square centered horizontally on a
// 100 pixel column.
func (s *Scene) drawCenterColumn() {
	const (
		colWidth  = 100
		colHeight = 75
		thickness = 10
	)
	xc, yc := s.buf.Width/2, s.buf.Height/2
	left := xc - colWidth/2
	top := yc - colHeight/2
	right := left + colHeight
	bottom := top + colHeight

	s.buf.Rect(0x80ff80ff, left, top, right, bottom)
	s.buf.FillRectOpaque(0xffffffff, left, top, right, bottom)
	s.buf.FillRectOpaque(0x808080ff, left+thickness, top+thickness, right-thickness, bottom-thickness)
}
