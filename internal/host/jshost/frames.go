//go:build js && wasm

package jshost

import (
	"syscall/js"
)

// FrameLoop calls fn with the page clock in milliseconds on every animation
// frame until Release.
type FrameLoop struct {
	fn      func(nowMs float64)
	cb      js.Func
	stopped bool
}

// StartFrames begins requesting animation frames.
func StartFrames(fn func(nowMs float64)) *FrameLoop {
	l := &FrameLoop{fn: fn}
	l.cb = js.FuncOf(l.callback)
	l.request()
	return l
}

func (l *FrameLoop) request() {
	window.Call("requestAnimationFrame", l.cb)
}

func (l *FrameLoop) callback(this js.Value, args []js.Value) interface{} {
	if l.stopped {
		return nil
	}
	l.fn(args[0].Float())
	l.request()
	return nil
}

// Release stops the loop and frees the callback.
func (l *FrameLoop) Release() {
	l.stopped = true
	l.cb.Release()
}

// OnKeyDown calls fn with the key name for every keydown on the window. The
// returned func removes the listener.
func OnKeyDown(fn func(key string)) (remove func()) {
	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		fn(args[0].Get("key").String())
		return nil
	})
	window.Call("addEventListener", "keydown", cb)
	return func() {
		window.Call("removeEventListener", "keydown", cb)
		cb.Release()
	}
}
