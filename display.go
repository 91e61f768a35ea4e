package kittygfx

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ImageDisplay writes graphics commands to a terminal output stream and remembers
// which image ids it has transmitted.
type ImageDisplay struct {
	w     io.Writer
	quiet Quiet
	tmux  bool

	mu          sync.Mutex
	transmitted map[uint32]struct{}
}

// NewImageDisplay returns an ImageDisplay writing to w. Responses are suppressed (QuietAll)
// since nothing reads them, and tmux passthrough follows InTmux.
func NewImageDisplay(w io.Writer) *ImageDisplay {
	return &ImageDisplay{
		w:           w,
		quiet:       QuietAll,
		tmux:        InTmux(),
		transmitted: make(map[uint32]struct{}),
	}
}

// Quiet sets the quiet level of the commands the ImageDisplay builds
func (d *ImageDisplay) Quiet(q Quiet) *ImageDisplay {
	d.quiet = q
	return d
}

// Tmux forces tmux passthrough wrapping on or off
func (d *ImageDisplay) Tmux(enabled bool) *ImageDisplay {
	d.tmux = enabled
	return d
}

type flusher interface {
	Flush() error
}

// Send serializes cmd with payload and writes every frame
func (d *ImageDisplay) Send(cmd *Command, payload []byte) error {
	frames, err := Serialize(cmd, payload)
	if err != nil {
		return err
	}
	var wrap func(string) string
	if d.tmux {
		wrap = Passthrough
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := frames.writeTo(d.w, wrap); err != nil {
		return fmt.Errorf("failed to write graphics command: %w", err)
	}
	if f, ok := d.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
	}
	return nil
}

func (d *ImageDisplay) build(b *Builder) (*Command, error) {
	return b.Quiet(d.quiet).Build()
}

// TransmitPNG uploads PNG data as image id without displaying it
func (d *ImageDisplay) TransmitPNG(data []byte, id uint32) error {
	cmd, err := d.build(NewBuilder().Action(TransmitOnly).Format(PNG).ImageID(id))
	if err != nil {
		return err
	}
	if err := d.Send(cmd, data); err != nil {
		return err
	}
	d.mu.Lock()
	d.transmitted[id] = struct{}{}
	d.mu.Unlock()
	return nil
}

// DisplayPNG transmits and displays PNG data at the cursor
func (d *ImageDisplay) DisplayPNG(data []byte) error {
	cmd, err := d.build(NewBuilder().Action(TransmitAndDisplay).Format(PNG))
	if err != nil {
		return err
	}
	return d.Send(cmd, data)
}

// DisplayPNGFile reads a PNG file and displays it
func (d *ImageDisplay) DisplayPNGFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	return d.DisplayPNG(data)
}

// DisplayRGBA transmits and displays 8-bit RGBA pixels
func (d *ImageDisplay) DisplayRGBA(data []byte, width, height uint32) error {
	return d.displayRaw(RGBA, data, width, height)
}

// DisplayRGB transmits and displays 8-bit RGB pixels
func (d *ImageDisplay) DisplayRGB(data []byte, width, height uint32) error {
	return d.displayRaw(RGB, data, width, height)
}

func (d *ImageDisplay) displayRaw(f Format, data []byte, width, height uint32) error {
	if want := uint64(width) * uint64(height) * uint64(f.BytesPerPixel()); uint64(len(data)) != want {
		return fmt.Errorf("%w: %d bytes of %s data for %dx%d, want %d",
			ErrInvalidDimensions, len(data), f, width, height, want)
	}
	cmd, err := d.build(NewBuilder().Action(TransmitAndDisplay).Format(f).Dimensions(width, height))
	if err != nil {
		return err
	}
	return d.Send(cmd, data)
}

// Place displays a transmitted image scaled to cols x rows cells
func (d *ImageDisplay) Place(id, cols, rows uint32) error {
	cmd, err := d.build(NewBuilder().Action(Display).ImageID(id).DisplayArea(cols, rows))
	if err != nil {
		return err
	}
	return d.Send(cmd, nil)
}

// Delete removes every placement of image id and frees its data
func (d *ImageDisplay) Delete(id uint32) error {
	cmd, err := d.build(NewBuilder().Action(Delete).DeleteTarget(IDTarget(true)).ImageID(id))
	if err != nil {
		return err
	}
	if err := d.Send(cmd, nil); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.transmitted, id)
	d.mu.Unlock()
	return nil
}

// ClearAll removes every visible placement
func (d *ImageDisplay) ClearAll() error {
	cmd, err := d.build(NewBuilder().Action(Delete).DeleteTarget(AllTarget(false)))
	if err != nil {
		return err
	}
	return d.Send(cmd, nil)
}

// Transmitted reports whether image id was uploaded by TransmitPNG and not deleted since
func (d *ImageDisplay) Transmitted(id uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.transmitted[id]
	return ok
}
