package cmd

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"

	// Register image decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/apex/log"
	"github.com/blacktop/go-kittygfx"
	"github.com/nfnt/resize"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// payload is an image ready to transmit
type payload struct {
	format kittygfx.Format
	width  uint32 // pixels, zero for PNG
	height uint32
	data   []byte
}

// loadImage reads path. PNG files are sent as-is unless they need downscaling;
// everything else is decoded and sent as RGBA.
func loadImage(path string, maxWidth int) (*payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if bytes.HasPrefix(data, pngMagic) && maxWidth == 0 {
		return &payload{format: kittygfx.PNG, data: data}, nil
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	log.WithFields(log.Fields{
		"format": name,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Decoded image")

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = downscale(img, maxWidth)
		log.Debugf("Resized image to %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	return rgbaPayload(img), nil
}

// downscale shrinks img to width pixels keeping its aspect ratio
func downscale(img image.Image, width int) image.Image {
	interp := resize.Lanczos3
	// large reductions lose little with the faster filter
	if img.Bounds().Dx() > width*2 {
		interp = resize.Bilinear
	}
	return resize.Resize(uint(width), 0, img, interp)
}

func rgbaPayload(img image.Image) *payload {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &payload{
		format: kittygfx.RGBA,
		width:  uint32(b.Dx()),
		height: uint32(b.Dy()),
		data:   rgba.Pix,
	}
}

// deflate compresses data for o=z
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

// transmitCommand builds the command sending p with medium m. For file mediums
// the returned bytes are empty and the command carries the path instead. Call
// cleanup when the command could not be sent; once sent the terminal owns the
// temp file.
func transmitCommand(b *kittygfx.Builder, p *payload, m kittygfx.Medium, compress bool, src string) (*kittygfx.Command, []byte, func(), error) {
	cleanup := func() {}
	data := p.data

	b.Format(p.format)
	if p.format != kittygfx.PNG {
		b.Dimensions(p.width, p.height)
	}
	if compress {
		z, err := deflate(data)
		if err != nil {
			return nil, nil, cleanup, err
		}
		log.Debugf("Compressed payload %d -> %d bytes", len(data), len(z))
		data = z
		b.Compression(kittygfx.Zlib)
	}

	// the terminal reads a plain file as-is, so converted data goes through a temp file
	if m == kittygfx.File && (compress || p.format != kittygfx.PNG) {
		log.Debug("Image was converted, sending it as a temp file")
		m = kittygfx.TempFile
	}

	switch m {
	case kittygfx.Direct:
	case kittygfx.File:
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to resolve image path: %w", err)
		}
		b.Medium(kittygfx.File).Path(abs)
		data = nil
	case kittygfx.TempFile:
		f, err := writeTemp(data)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { os.Remove(f) }
		b.Medium(kittygfx.TempFile).Path(f)
		data = nil
	default:
		return nil, nil, cleanup, fmt.Errorf("unsupported medium %s", m)
	}

	cmd, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	return cmd, data, cleanup, nil
}

// writeTemp stores data in a file the terminal is allowed to delete after reading
func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "kittycat-tty-graphics-protocol-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), nil
}
