//go:build js && wasm

// Package jshost binds the announcer and the scene to a real browser page
// through syscall/js.
package jshost

import (
	"syscall/js"
	"time"

	"pageready/internal/announce"
	"pageready/internal/logging"
)

var (
	global   = js.Global()
	document = global.Get("document")
	window   = global.Get("window")
)

// Document is the page's document as an announce.Host.
type Document struct {
	doc js.Value
}

// NewDocument wraps the global document.
func NewDocument() *Document {
	return &Document{doc: document}
}

func (d *Document) CurrentState() announce.ReadyState {
	return announce.ParseReadyState(d.doc.Get("readyState").String())
}

// OnReady registers a once-only DOMContentLoaded listener. The js.Func is
// released after it runs.
func (d *Document) OnReady(fn func(evt *announce.Event)) {
	var cb js.Func
	cb = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		defer cb.Release()
		evt := &announce.Event{Type: announce.EventContentLoaded, Timestamp: time.Now()}
		if len(args) > 0 && args[0].Truthy() {
			evt.Type = args[0].Get("type").String()
		}
		logging.HostDebug("jshost: %s delivered", evt.Type)
		fn(evt)
		return nil
	})
	opts := global.Get("Object").New()
	opts.Set("once", true)
	d.doc.Call("addEventListener", announce.EventContentLoaded, cb, opts)
}

// Console writes each line with console.log.
type Console struct {
	console js.Value
}

// NewConsole wraps the global console.
func NewConsole() *Console {
	return &Console{console: global.Get("console")}
}

func (c *Console) Line(msg string) {
	c.console.Call("log", msg)
}
