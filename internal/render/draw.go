package render

// HorzLine blends c over the span x1..x2 (inclusive) on row y. x1 must not
// exceed x2.
func (b *Buffer) HorzLine(c Pixel, x1, x2, y int) {
	if y < 0 || y >= b.Height || x2 < 0 || x1 >= b.Width {
		return
	}
	if x1 < 0 {
		x1 = 0
	}
	if x2 >= b.Width {
		x2 = b.Width - 1
	}
	row := b.Pix[y*b.RowPixels:]
	for x := x1; x <= x2; x++ {
		row[x] = composite(c, row[x])
	}
}

// VertLine blends c over y1..y2 (inclusive) in column x. y1 must not exceed y2.
func (b *Buffer) VertLine(c Pixel, y1, y2, x int) {
	if x < 0 || x >= b.Width || y2 < 0 || y1 >= b.Height {
		return
	}
	if y1 < 0 {
		y1 = 0
	}
	if y2 >= b.Height {
		y2 = b.Height - 1
	}
	for y := y1; y <= y2; y++ {
		i := y*b.RowPixels + x
		b.Pix[i] = composite(c, b.Pix[i])
	}
}

// Rect outlines the rectangle with exclusive right and bottom edges. Corners
// are blended once.
func (b *Buffer) Rect(c Pixel, left, top, right, bottom int) {
	right--
	bottom--
	b.HorzLine(c, left, right, top)
	b.HorzLine(c, left, right, bottom)

	top++
	bottom--
	if top <= bottom {
		b.VertLine(c, top, bottom, left)
		b.VertLine(c, top, bottom, right)
	}
}

// FillRectOpaque overwrites the rectangle with exclusive right and bottom
// edges, clipped to the buffer.
func (b *Buffer) FillRectOpaque(c Pixel, left, top, right, bottom int) {
	if bottom < 0 || top >= b.Height || right < 0 || left >= b.Width {
		return
	}
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if right > b.Width {
		right = b.Width
	}
	if bottom > b.Height {
		bottom = b.Height
	}
	for y := top; y < bottom; y++ {
		row := b.Pix[y*b.RowPixels:]
		for x := left; x < right; x++ {
			row[x] = c
		}
	}
}

// SetPixel blends c at (x, y). Row 0 and column 0 are never written.
func (b *Buffer) SetPixel(c Pixel, x, y int) {
	if x <= 0 || y <= 0 || x >= b.Width || y >= b.Height {
		return
	}
	i := y*b.RowPixels + x
	b.Pix[i] = composite(c, b.Pix[i])
}

func (b *Buffer) plotCirclePoints(c Pixel, cx, cy, x, y int) {
	b.SetPixel(c, cx+x, cy+y)
	b.SetPixel(c, cx-x, cy+y)
	b.SetPixel(c, cx+x, cy-y)
	b.SetPixel(c, cx-x, cy-y)
	b.SetPixel(c, cx+y, cy+x)
	b.SetPixel(c, cx-y, cy+x)
	b.SetPixel(c, cx+y, cy-x)
	b.SetPixel(c, cx-y, cy-x)
}

// midpoint walks one octant of a circle of the given radius, calling plot
// for the starting point and every step.
func midpoint(radius int, plot func(x, y int)) {
	x, y := 0, radius
	plot(x, y)
	p := 1 - radius
	for x < y {
		x++
		if p < 0 {
			p += 2*x + 1
		} else {
			y--
			p += 2*(x-y) + 1
		}
		plot(x, y)
	}
}

// Circle outlines a circle with the midpoint algorithm.
func (b *Buffer) Circle(c Pixel, cx, cy, radius int) {
	midpoint(radius, func(x, y int) {
		b.plotCirclePoints(c, cx, cy, x, y)
	})
}

// FillCircle fills a circle with four horizontal spans per step. Spans
// overlap, so translucent colors blend more than once near the diagonals.
func (b *Buffer) FillCircle(c Pixel, cx, cy, radius int) {
	midpoint(radius, func(x, y int) {
		b.HorzLine(c, cx-x, cx+x, cy+y)
		b.HorzLine(c, cx-x, cx+x, cy-y)
		b.HorzLine(c, cx-y, cx+y, cy+x)
		b.HorzLine(c, cx-y, cx+y, cy-x)
	})
}
