package kittygfx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// placementID is reused for every placement so moving the image replaces the old
// placement instead of leaving a copy behind.
const placementID = 1

// transmittedMsg reports that an ImageModel's image was written to the terminal
type transmittedMsg struct {
	id  uint32
	err error
}

// ImageModel is a bubbletea component showing a PNG image. The upload is written
// straight to the program's output by the Init command, never through the
// renderer, which only keeps the latest frame. Once it is written the image is
// placed with a fixed placement id every frame; the view itself holds blank cells
// so layout code never measures escape sequences.
type ImageModel struct {
	id   uint32
	data []byte
	out  io.Writer

	row, col   int // 1-based screen position of the top left cell
	cols, rows int
	fit        bool
	tmux       bool

	ready bool
	err   error
}

// NewImageModel returns a model uploading png as image id to os.Stdout
func NewImageModel(id uint32, png []byte) ImageModel {
	return ImageModel{id: id, data: png, out: os.Stdout, row: 1, col: 1, tmux: InTmux()}
}

// Output sets the writer the upload goes to. It must be the writer given to
// tea.WithOutput, and safe to share with the renderer (an *os.File is).
func (m ImageModel) Output(w io.Writer) ImageModel {
	m.out = w
	return m
}

// At moves the image to the 1-based screen cell (row, col)
func (m ImageModel) At(row, col int) ImageModel {
	m.row, m.col = max(row, 1), max(col, 1)
	return m
}

// Size sets the placement size in cells
func (m ImageModel) Size(cols, rows int) ImageModel {
	m.cols, m.rows = cols, rows
	m.fit = false
	return m
}

// Fit makes the placement follow the window size from its position to the edges
func (m ImageModel) Fit() ImageModel {
	m.fit = true
	return m
}

// Err returns the upload error, if any
func (m ImageModel) Err() error { return m.err }

// Ready reports whether the image was uploaded and is being placed
func (m ImageModel) Ready() bool { return m.ready }

// Init uploads the image
func (m ImageModel) Init() tea.Cmd {
	id, data, out, tmux := m.id, m.data, m.out, m.tmux
	return func() tea.Msg {
		cmd, err := NewBuilder().
			Action(TransmitOnly).
			Format(PNG).
			ImageID(id).
			Quiet(QuietAll).
			Build()
		if err != nil {
			return transmittedMsg{id: id, err: err}
		}
		frames, err := Serialize(cmd, data)
		if err != nil {
			return transmittedMsg{id: id, err: err}
		}
		var wrap func(string) string
		if tmux {
			wrap = Passthrough
		}
		// one Write so the renderer cannot land inside a frame
		var buf bytes.Buffer
		if _, err := frames.writeTo(&buf, wrap); err != nil {
			return transmittedMsg{id: id, err: err}
		}
		if _, err := out.Write(buf.Bytes()); err != nil {
			return transmittedMsg{id: id, err: err}
		}
		return transmittedMsg{id: id}
	}
}

func (m ImageModel) Update(msg tea.Msg) (ImageModel, tea.Cmd) {
	switch msg := msg.(type) {
	case transmittedMsg:
		if msg.id != m.id {
			return m, nil
		}
		if msg.err != nil {
			m.err = fmt.Errorf("failed to transmit image %d: %w", m.id, msg.err)
			return m, nil
		}
		m.ready = true
	case tea.WindowSizeMsg:
		if m.fit {
			m.cols = max(msg.Width-m.col+1, 0)
			m.rows = max(msg.Height-m.row+1, 0)
		}
	}
	return m, nil
}

// View returns blank cells covering the image followed by the placement command
func (m ImageModel) View() string {
	return BlankPlaceholder(m.cols, m.rows) + m.placement()
}

func (m ImageModel) placement() string {
	if !m.ready || m.cols <= 0 || m.rows <= 0 {
		return ""
	}
	cmd, err := NewBuilder().
		Action(Display).
		ImageID(m.id).
		PlacementID(placementID).
		DisplayArea(uint32(m.cols), uint32(m.rows)).
		CursorPolicy(DoNotMoveCursor).
		Quiet(QuietAll).
		Build()
	if err != nil {
		return ""
	}
	frames, err := SerializeAll(cmd, nil)
	if err != nil {
		return ""
	}
	seq := frames[0]
	if m.tmux {
		seq = Passthrough(seq)
	}
	// save cursor, move, place, restore
	return fmt.Sprintf("\x1b[s\x1b[%d;%dH%s\x1b[u", m.row, m.col, seq)
}

// Clear returns the sequence deleting the image and freeing its data
func (m ImageModel) Clear() string {
	cmd, err := NewBuilder().
		Action(Delete).
		DeleteTarget(IDTarget(true)).
		ImageID(m.id).
		Quiet(QuietAll).
		Build()
	if err != nil {
		return ""
	}
	frames, err := SerializeAll(cmd, nil)
	if err != nil {
		return ""
	}
	if m.tmux {
		return Passthrough(frames[0])
	}
	return frames[0]
}

// BlankPlaceholder returns width x height spaces, one line per row
func BlankPlaceholder(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	line := strings.Repeat(" ", width)
	lines := make([]string, height)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
