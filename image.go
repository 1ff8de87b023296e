package blend

import (
	"image"

	"github.com/scigolib/blend/internal/core"
)

// Image is a decoded RGBA payload: either the file's embedded thumbnail or
// one of the two PreviewImage icon sizes the heuristic inferencer recovers.
type Image struct {
	Name   string
	Width  int
	Height int
	Pixels image.Image
}

// ImageSink is the external collaborator that turns raw RGBA bytes into an
// Image. A default, stdlib-backed implementation is used unless the caller
// supplies one via WithImageSink.
type ImageSink interface {
	Decode(name string, width, height int, rgba []byte) (interface{}, error)
}

// stdlibImageSink decodes RGBA payloads into image.NRGBA values using only
// the standard image package; no compression or file encoding is involved,
// just an in-memory pixel buffer the caller can pass to any encoder they
// like.
type stdlibImageSink struct{}

func (stdlibImageSink) Decode(name string, width, height int, rgba []byte) (interface{}, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, rgba)
	return &Image{Name: name, Width: width, Height: height, Pixels: img}, nil
}

// coreSinkAdapter lets a public ImageSink satisfy internal/core's ImageSink
// interface without internal/core importing the root package.
type coreSinkAdapter struct {
	sink ImageSink
}

func (a coreSinkAdapter) Decode(name string, width, height int, rgba []byte) (interface{}, error) {
	return a.sink.Decode(name, width, height, rgba)
}

var _ core.ImageSink = coreSinkAdapter{}
