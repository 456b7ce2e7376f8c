//go:build js && wasm

// Command pageready-wasm is the page script: it announces the page load to
// the console, then runs the bouncing-ball scene on the #screen canvas.
//
//	GOOS=js GOARCH=wasm go build -o web/main.wasm ./cmd/pageready-wasm
package main

import (
	"math/rand/v2"
	"time"

	"pageready/internal/announce"
	"pageready/internal/bounce"
	"pageready/internal/host/jshost"
)

// Matches the canvas id in the served index.html.
const canvasSelector = "#screen"

func main() {
	console := jshost.NewConsole()
	page := announce.New(console, announce.WithTarget("wasm"))
	page.Load(jshost.NewDocument())

	// Program startup calls into the page exactly once, before any drawing
	// is set up.
	page.Main()

	cfg := bounce.DefaultConfig()
	canvas, err := jshost.FindCanvas(canvasSelector, cfg.Width, cfg.Height)
	if err != nil {
		console.Line(err.Error())
		// The content-loaded listener still needs a live runtime.
		select {}
	}

	seed := uint64(time.Now().UnixNano())
	scene := bounce.NewScene(cfg, rand.New(rand.NewPCG(seed, seed)), console)

	jshost.StartFrames(func(nowMs float64) {
		scene.Frame(nowMs)
		canvas.Present(scene.Buffer())
	})
	jshost.OnKeyDown(func(string) { scene.KeyPress() })

	select {}
}
