// Package blend provides a pure Go reader for the .blend file format: the
// embedded Structure DNA schema, the typed object graph it describes, and
// the handful of well-known blocks (embedded thumbnail, render info) that
// every .blend file carries regardless of scene content.
package blend

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/blend/internal/config"
	"github.com/scigolib/blend/internal/core"
	"github.com/scigolib/blend/internal/diag"
	"github.com/scigolib/blend/internal/utils"
)

// File represents an open .blend file and the object graph decoded from
// it. A File is read-only: it has no methods that mutate the underlying
// stream once Open returns.
type File struct {
	osFile *os.File
	header *core.FileHeader
	sdna   *core.SDNA
	index  *core.BlockIndex

	thumbnail  *Image
	renderInfo []core.RenderInfo

	diagCollector *diag.Collector
}

// Option configures Open. The zero value of every Option field is the
// default behavior: no config file, the standard logger, and the stdlib
// image sink.
type Option func(*openOptions)

type openOptions struct {
	configFile string
	logger     *logrus.Logger
	imageSink  ImageSink
}

// WithConfigFile points Open at an optional config file (ini/yaml/toml/json)
// overriding the decoder's built-in safety limits.
func WithConfigFile(path string) Option {
	return func(o *openOptions) { o.configFile = path }
}

// WithLogger directs diagnostics at a caller-supplied logrus logger instead
// of logrus's package-level standard logger.
func WithLogger(log *logrus.Logger) Option {
	return func(o *openOptions) { o.logger = log }
}

// WithImageSink overrides the default stdlib-backed RGBA decoder used for
// the embedded thumbnail and the PreviewImage heuristic rule.
func WithImageSink(sink ImageSink) Option {
	return func(o *openOptions) { o.imageSink = sink }
}

// Open reads and decodes a .blend file in full: the file header, every
// block header, the embedded Structure DNA, a first materialization pass
// over every block whose layout the SDNA describes directly, the
// heuristic inferencer's second pass over everything that pass left
// unresolved, and the well-known TEST/REND block handlers.
//
// A malformed file header, an unsupported pointer/endian code, a
// cross-endian file, or a corrupt DNA1 payload fails the whole call with no
// partial object graph returned. Everything else the format allows to be
// recoverable is instead recorded in Diagnostics: an unknown struct index,
// an unknown nested struct type, or an unresolved heuristic rule leaves the
// affected block unprocessed, and an unparsable member spelling skips that
// member.
func Open(filename string, opts ...Option) (*File, error) {
	o := &openOptions{imageSink: stdlibImageSink{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.imageSink == nil {
		o.imageSink = stdlibImageSink{}
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("open %q", filename), err)
	}

	limits := config.Load(o.configFile)
	dc := diag.NewCollector(o.logger)

	file, err := decode(f, limits, dc, o.imageSink)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	file.osFile = f
	file.diagCollector = dc
	return file, nil
}

func decode(f *os.File, limits config.Limits, dc *diag.Collector, sink ImageSink) (*File, error) {
	header, err := core.ReadFileHeader(f)
	if err != nil {
		return nil, err
	}

	order := header.ByteOrder()

	index, sdna, err := core.ScanBlocks(f, order, header.PointerSize, limits, dc)
	if err != nil {
		return nil, err
	}

	ctx := &core.Context{
		R:           f,
		Order:       order,
		PointerSize: header.PointerSize,
		SDNA:        sdna,
		Index:       index,
		Limits:      limits,
		Diag:        dc,
	}

	file := &File{header: header, sdna: sdna, index: index}

	coreSink := coreSinkAdapter{sink: sink}

	for _, b := range index.Order {
		switch b.Code {
		case core.TestBlockCode:
			img, err := core.HandleTest(f, order, b, coreSink)
			if err != nil {
				return nil, err
			}
			if im, ok := img.(*Image); ok {
				file.thumbnail = im
			}
		case core.RendBlockCode:
			infos, err := core.HandleRend(f, order, b)
			if err != nil {
				return nil, err
			}
			file.renderInfo = infos
		case "DNA1":
			// already decoded and marked processed by ScanBlocks
		default:
			if err := core.MaterializeBlock(ctx, b); err != nil {
				return nil, err
			}
		}
	}

	if err := core.RunInference(ctx, index, coreSink); err != nil {
		return nil, err
	}

	for _, b := range index.Order {
		if !b.Processed {
			if err := core.MaterializeBlock(ctx, b); err != nil {
				return nil, err
			}
		}
	}

	return file, nil
}

// Close releases the underlying OS file handle. The decoded object graph
// remains valid after Close; only further reads from the stream (none are
// possible through the public API) would be affected.
func (f *File) Close() error {
	if f.osFile == nil {
		return nil
	}
	return f.osFile.Close()
}

// Header returns the immutable 12-byte file header.
func (f *File) Header() *core.FileHeader { return f.header }

// SDNA returns the decoded Structure DNA.
func (f *File) SDNA() *core.SDNA { return f.sdna }

// Blocks returns every block in file order.
func (f *File) Blocks() []Block {
	out := make([]Block, len(f.index.Order))
	for i, b := range f.index.Order {
		out[i] = Block{h: b}
	}
	return out
}

// BlocksByCode returns every block whose code equals code, in file order.
func (f *File) BlocksByCode(code string) []Block {
	hs := f.index.ByCode[code]
	out := make([]Block, len(hs))
	for i, b := range hs {
		out[i] = Block{h: b}
	}
	return out
}

// BlockByAddress returns the block whose old address equals addr, and
// whether one was found.
func (f *File) BlockByAddress(addr uint64) (Block, bool) {
	h, ok := f.index.ByAddr[addr]
	if !ok {
		return Block{}, false
	}
	return Block{h: h}, true
}

// Thumbnail returns the file's embedded preview image, or nil if it has
// none.
func (f *File) Thumbnail() *Image { return f.thumbnail }

// RenderInfo returns the decoded abbreviated render-info entries.
func (f *File) RenderInfo() []core.RenderInfo { return f.renderInfo }

// Diagnostics returns every recoverable condition recorded while decoding
// the file.
func (f *File) Diagnostics() []diag.Entry {
	if f.diagCollector == nil {
		return nil
	}
	return f.diagCollector.Entries()
}
