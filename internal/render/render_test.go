package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	black = Pixel(0x000000ff)
	white = Pixel(0xffffffff)
	red   = Pixel(0xff0000ff)
)

func TestComponents(t *testing.T) {
	r, g, b := Components(0x11223344)
	assert.Equal(t, []uint8{0x11, 0x22, 0x33}, []uint8{r, g, b})
	assert.Equal(t, uint8(0x44), Pixel(0x11223344).Alpha())
	assert.Equal(t, Pixel(0x11223344), RGBA(0x11, 0x22, 0x33, 0x44))
	assert.Equal(t, "#11223344", Pixel(0x11223344).String())
}

func TestComposite(t *testing.T) {
	dst := Pixel(0x204060aa)
	assert.Equal(t, Pixel(0xff0000aa), composite(red, dst), "opaque source replaces color, keeps dst alpha")
	assert.Equal(t, dst, composite(0xff000000, dst), "transparent source is a no-op")

	half := composite(RGBA(255, 255, 255, 128), RGBA(0, 0, 0, 255))
	r, g, b := Components(half)
	assert.Equal(t, uint8(128), r)
	assert.Equal(t, r, g)
	assert.Equal(t, r, b)
	assert.Equal(t, uint8(255), half.Alpha())
}

func TestNewBufferUniqueIDs(t *testing.T) {
	a := NewBuffer(2, 2)
	b := NewBuffer(2, 2)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.Pix, 4)
}

func TestWrap(t *testing.T) {
	pix := make([]Pixel, 10*3)
	b, err := Wrap(pix, 4, 3, 10)
	require.NoError(t, err)
	b.Fill(red)
	assert.Equal(t, red, pix[0])
	assert.Equal(t, red, pix[23])
	assert.Equal(t, Pixel(0), pix[4], "padding outside width is untouched")

	_, err = Wrap(pix[:5], 4, 3, 10)
	assert.Error(t, err)
	_, err = Wrap(pix, 11, 1, 10)
	assert.Error(t, err)
}

func TestHorzLineClips(t *testing.T) {
	b := NewBuffer(5, 3)
	b.Fill(black)
	b.HorzLine(white, -3, 10, 1)
	for x := 0; x < 5; x++ {
		assert.Equal(t, white, b.At(x, 1))
		assert.Equal(t, black, b.At(x, 0))
	}
	b.HorzLine(red, 0, 4, -1)
	b.HorzLine(red, 0, 4, 3)
	b.HorzLine(red, 5, 9, 0)
	b.HorzLine(red, -5, -1, 0)
	for _, p := range b.Pix {
		assert.NotEqual(t, red, p)
	}
}

func TestVertLineClips(t *testing.T) {
	b := NewBuffer(3, 4)
	b.Fill(black)
	b.VertLine(white, -1, 99, 2)
	for y := 0; y < 4; y++ {
		assert.Equal(t, white, b.At(2, y))
		assert.Equal(t, black, b.At(1, y))
	}
}

func TestRectOutline(t *testing.T) {
	b := NewBuffer(6, 6)
	b.Fill(black)
	b.Rect(white, 1, 1, 5, 5)

	for x := 1; x <= 4; x++ {
		assert.Equal(t, white, b.At(x, 1), "top x=%d", x)
		assert.Equal(t, white, b.At(x, 4), "bottom x=%d", x)
	}
	for y := 2; y <= 3; y++ {
		assert.Equal(t, white, b.At(1, y))
		assert.Equal(t, white, b.At(4, y))
		assert.Equal(t, black, b.At(2, y), "interior untouched")
	}
	assert.Equal(t, black, b.At(5, 5), "right and bottom are exclusive")
}

func TestRectCornersBlendOnce(t *testing.T) {
	b := NewBuffer(4, 4)
	b.Fill(black)
	half := RGBA(255, 255, 255, 128)
	b.Rect(half, 0, 0, 4, 4)
	assert.Equal(t, b.At(0, 1), b.At(0, 0), "corner blended the same number of times as an edge")
}

func TestFillRectOpaque(t *testing.T) {
	b := NewBuffer(4, 4)
	b.FillRectOpaque(0x12345600, -2, -2, 2, 2)
	assert.Equal(t, Pixel(0x12345600), b.At(0, 0), "fill ignores alpha")
	assert.Equal(t, Pixel(0x12345600), b.At(1, 1))
	assert.Equal(t, Pixel(0), b.At(2, 2))

	b.FillRectOpaque(red, 3, 3, 100, 100)
	assert.Equal(t, red, b.At(3, 3))
}

func TestSetPixelSkipsOrigin(t *testing.T) {
	b := NewBuffer(3, 3)
	b.SetPixel(red, 0, 1)
	b.SetPixel(red, 1, 0)
	b.SetPixel(red, 1, 1)
	assert.Equal(t, Pixel(0), b.At(0, 1))
	assert.Equal(t, Pixel(0), b.At(1, 0))
	assert.Equal(t, Pixel(0xff000000), b.At(1, 1))
}

func TestCircle(t *testing.T) {
	b := NewBuffer(21, 21)
	b.Fill(black)
	b.Circle(white, 10, 10, 5)

	for _, pt := range [][2]int{{15, 10}, {5, 10}, {10, 15}, {10, 5}} {
		assert.Equal(t, white, b.At(pt[0], pt[1]), "extreme point %v", pt)
	}
	assert.Equal(t, black, b.At(10, 10), "outline only")
}

func TestFillCircle(t *testing.T) {
	b := NewBuffer(21, 21)
	b.Fill(black)
	b.FillCircle(red, 10, 10, 5)

	assert.Equal(t, red, b.At(10, 10))
	assert.Equal(t, red, b.At(15, 10))
	assert.Equal(t, red, b.At(10, 5))
	assert.Equal(t, black, b.At(15, 15), "outside the circle")
	assert.Equal(t, black, b.At(16, 10))
}

func TestFillCircleClipsAtEdges(t *testing.T) {
	b := NewBuffer(10, 10)
	assert.NotPanics(t, func() {
		b.FillCircle(red, 0, 0, 30)
		b.Circle(red, 9, 9, 30)
	})
}

func TestCopyRGBAAndImage(t *testing.T) {
	b := NewBuffer(2, 1)
	b.Pix[0] = 0x11223344
	b.Pix[1] = 0xaabbccdd
	dst := make([]byte, 8)
	b.CopyRGBA(dst)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0xaa, 0xbb, 0xcc, 0xdd}, dst)

	img := b.RGBA()
	assert.Equal(t, dst, img.Pix)
	assert.Equal(t, 2, img.Bounds().Dx())
}
