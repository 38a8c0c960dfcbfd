package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFromImage(t *testing.T) {
	src := createTestImage(3, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	im := FromImage(src)
	require.NotNil(t, im)
	require.NoError(t, im.Validate())
	assert.Equal(t, 3, im.Width)
	assert.Equal(t, 2, im.Height)
	assert.Equal(t, []uint8{10, 20, 30, 255}, im.Pix[:4])
	assert.Equal(t, 6, im.PixelCount())
}

func TestFromImage_OffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 9, 8))
	src.SetNRGBA(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	im := FromImage(src)
	require.NoError(t, im.Validate())
	assert.Equal(t, 4, im.Width)
	assert.Equal(t, 3, im.Height)
	assert.Equal(t, []uint8{1, 2, 3, 4}, im.Pix[:4])
}

func TestFromImage_Nil(t *testing.T) {
	assert.Nil(t, FromImage(nil))
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		name string
		img  *Image
		want bool
	}{
		{"nil", nil, true},
		{"zero width", New(0, 4), true},
		{"zero height", New(4, 0), true},
		{"one pixel", New(1, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.img.Empty())
		})
	}
}

func TestValidate_Mismatch(t *testing.T) {
	im := &Image{Width: 2, Height: 2, Pix: make([]uint8, 15)}
	assert.ErrorIs(t, im.Validate(), ErrBufferSize)
}

func TestClone_IsIndependent(t *testing.T) {
	im := New(2, 1)
	im.Pix[0] = 42

	cp := im.Clone()
	cp.Pix[0] = 7

	assert.Equal(t, uint8(42), im.Pix[0])
	assert.Equal(t, uint8(7), cp.Pix[0])
}

func TestNRGBA_SharesBuffer(t *testing.T) {
	im := New(2, 2)
	n := im.NRGBA()
	n.SetNRGBA(1, 1, color.NRGBA{R: 9, G: 9, B: 9, A: 9})

	assert.Equal(t, uint8(9), im.Pix[(1*2+1)*4])
	assert.Equal(t, image.Rect(0, 0, 2, 2), n.Bounds())
}

func TestPool_GetPut(t *testing.T) {
	p := NewPool()

	a := p.Get(4, 3)
	require.NoError(t, a.Validate())
	p.Put(a)
	assert.Nil(t, a.Pix)

	b := p.Get(4, 3)
	require.NoError(t, b.Validate())

	c := p.Get(2, 2)
	require.NoError(t, c.Validate())
	assert.Len(t, c.Pix, 16)
}

func TestPool_Nil(t *testing.T) {
	var p *Pool

	im := p.Get(2, 2)
	require.NoError(t, im.Validate())
	p.Put(im)
	assert.NotNil(t, im.Pix)
}
