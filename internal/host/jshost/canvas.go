//go:build js && wasm

package jshost

import (
	"fmt"
	"syscall/js"

	"pageready/internal/render"
)

var (
	imageData         = global.Get("ImageData")
	uint8ClampedArray = global.Get("Uint8ClampedArray")
)

// Canvas presents render.Buffers on an HTML canvas element.
type Canvas struct {
	el   js.Value
	ctx  js.Value
	pix  []byte
	data js.Value
}

// FindCanvas looks up a canvas by CSS selector and sizes it to w x h.
func FindCanvas(selector string, w, h int) (*Canvas, error) {
	el := document.Call("querySelector", selector)
	if !el.Truthy() {
		return nil, fmt.Errorf("no canvas matches %q", selector)
	}
	el.Set("width", w)
	el.Set("height", h)
	return &Canvas{
		el:   el,
		ctx:  el.Call("getContext", "2d"),
		pix:  make([]byte, w*h*4),
		data: uint8ClampedArray.New(w * h * 4),
	}, nil
}

// Present copies buf into the canvas.
func (c *Canvas) Present(buf *render.Buffer) {
	buf.CopyRGBA(c.pix)
	js.CopyBytesToJS(c.data, c.pix)
	img := imageData.New(c.data, buf.Width, buf.Height)
	c.ctx.Call("putImageData", img, 0, 0)
}
