// Package render is a small software rasterizer over a 32-bit pixel buffer.
// Lines, rectangles and circles clip against the buffer; line and circle
// primitives blend with the source alpha, fills overwrite.
package render

import (
	"fmt"
	"image"
	"sync/atomic"
)

// Pixel is a packed 0xRRGGBBAA color.
type Pixel uint32

// RGBA packs four channels.
func RGBA(r, g, b, a uint8) Pixel {
	return Pixel(r)<<24 | Pixel(g)<<16 | Pixel(b)<<8 | Pixel(a)
}

// Components returns the color channels of p.
func Components(p Pixel) (r, g, b uint8) {
	return uint8(p >> 24), uint8(p >> 16), uint8(p >> 8)
}

// Alpha returns the alpha channel of p.
func (p Pixel) Alpha() uint8 { return uint8(p) }

func (p Pixel) String() string { return fmt.Sprintf("#%08x", uint32(p)) }

// compositeValue blends a over b with weight m out of 255.
func compositeValue(a, b, m int32) int32 {
	return (m*(a-b) + 255*b) / 255
}

// composite blends src over dst using src's alpha. dst keeps its alpha.
func composite(src, dst Pixel) Pixel {
	m := int32(src.Alpha())
	switch m {
	case 255:
		return src&^0xff | dst&0xff
	case 0:
		return dst
	}
	sr, sg, sb := Components(src)
	dr, dg, db := Components(dst)
	r := compositeValue(int32(sr), int32(dr), m)
	g := compositeValue(int32(sg), int32(dg), m)
	b := compositeValue(int32(sb), int32(db), m)
	return RGBA(uint8(r), uint8(g), uint8(b), dst.Alpha())
}

var lastBufferID uint32

// Buffer is a row-major pixel surface. RowPixels may exceed Width when the
// memory belongs to a larger surface.
type Buffer struct {
	ID        uint32
	Pix       []Pixel
	Width     int
	Height    int
	RowPixels int
}

// NewBuffer allocates a w x h buffer with a process-unique ID.
func NewBuffer(w, h int) *Buffer {
	return &Buffer{
		ID:        atomic.AddUint32(&lastBufferID, 1),
		Pix:       make([]Pixel, w*h),
		Width:     w,
		Height:    h,
		RowPixels: w,
	}
}

// Wrap adopts caller-owned pixels. It fails if pix is too small for the
// described surface.
func Wrap(pix []Pixel, w, h, rowPixels int) (*Buffer, error) {
	if w < 0 || h < 0 || rowPixels < w {
		return nil, fmt.Errorf("render: invalid geometry %dx%d row %d", w, h, rowPixels)
	}
	if h > 0 && len(pix) < (h-1)*rowPixels+w {
		return nil, fmt.Errorf("render: %d pixels cannot hold %dx%d with row %d", len(pix), w, h, rowPixels)
	}
	return &Buffer{
		ID:        atomic.AddUint32(&lastBufferID, 1),
		Pix:       pix,
		Width:     w,
		Height:    h,
		RowPixels: rowPixels,
	}, nil
}

// At returns the pixel at (x, y), or 0 outside the buffer.
func (b *Buffer) At(x, y int) Pixel {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 0
	}
	return b.Pix[y*b.RowPixels+x]
}

// Fill overwrites every pixel with c.
func (b *Buffer) Fill(c Pixel) {
	for y := 0; y < b.Height; y++ {
		row := b.Pix[y*b.RowPixels : y*b.RowPixels+b.Width]
		for i := range row {
			row[i] = c
		}
	}
}

// CopyRGBA writes the buffer as packed R,G,B,A bytes, the layout of canvas
// ImageData. dst must hold Width*Height*4 bytes.
func (b *Buffer) CopyRGBA(dst []byte) {
	i := 0
	for y := 0; y < b.Height; y++ {
		for _, p := range b.Pix[y*b.RowPixels : y*b.RowPixels+b.Width] {
			dst[i] = uint8(p >> 24)
			dst[i+1] = uint8(p >> 16)
			dst[i+2] = uint8(p >> 8)
			dst[i+3] = uint8(p)
			i += 4
		}
	}
}

// RGBA converts the buffer to an image for encoding.
func (b *Buffer) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	b.CopyRGBA(img.Pix)
	return img
}
