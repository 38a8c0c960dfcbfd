package raster

import "sync"

type dims struct {
	w, h int
}

// Pool recycles pixel buffers per (width, height). A buffer handed out by
// Get belongs to exactly one caller until it is returned with Put.
//
// A nil *Pool is valid: Get allocates and Put discards.
type Pool struct {
	mu    sync.Mutex
	pools map[dims]*sync.Pool
}

// NewPool creates an empty buffer pool.
func NewPool() *Pool {
	return &Pool{pools: make(map[dims]*sync.Pool)}
}

func (p *Pool) bucket(w, h int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := dims{w, h}
	sp, ok := p.pools[key]
	if !ok {
		sp = &sync.Pool{
			New: func() interface{} {
				return make([]uint8, w*h*4)
			},
		}
		p.pools[key] = sp
	}
	return sp
}

// Get returns a raster of the requested size. Pixel contents are undefined;
// callers are expected to overwrite every byte.
func (p *Pool) Get(width, height int) *Image {
	if p == nil || width <= 0 || height <= 0 {
		return New(width, height)
	}
	pix := p.bucket(width, height).Get().([]uint8)
	return &Image{Width: width, Height: height, Pix: pix[:width*height*4]}
}

// Put hands a raster's buffer back. The caller must not use im afterwards.
func (p *Pool) Put(im *Image) {
	if p == nil || im.Empty() || im.Validate() != nil {
		return
	}
	p.bucket(im.Width, im.Height).Put(im.Pix)
	im.Pix = nil
}
