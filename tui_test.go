package kittygfx

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is shared by the renderer and the upload command
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestImageModel(out *syncBuffer) ImageModel {
	m := NewImageModel(4, []byte("png")).Output(out)
	m.tmux = false
	return m
}

// hostModel embeds an ImageModel the way an application does and quits once
// the image is placed.
type hostModel struct {
	image ImageModel
}

type giveUpMsg struct{}

func (h hostModel) Init() tea.Cmd {
	return tea.Batch(h.image.Init(), tea.Tick(2*time.Second, func(time.Time) tea.Msg { return giveUpMsg{} }))
}

func (h hostModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(giveUpMsg); ok {
		return h, tea.Quit
	}
	var cmd tea.Cmd
	h.image, cmd = h.image.Update(msg)
	if h.image.Ready() || h.image.Err() != nil {
		return h, tea.Quit
	}
	return h, cmd
}

func (h hostModel) View() string {
	return "title\n" + h.image.View()
}

func TestImageModelInProgram(t *testing.T) {
	out := &syncBuffer{}
	host := hostModel{image: newTestImageModel(out).At(2, 1).Size(4, 2)}

	final, err := tea.NewProgram(host, tea.WithOutput(out), tea.WithInput(nil)).Run()
	require.NoError(t, err)
	require.True(t, final.(hostModel).image.Ready(), "image was never uploaded")

	got := out.String()
	upload := strings.Index(got, "\x1b_Ga=t,f=100,i=4,q=2;cG5n\x1b\\")
	placement := strings.Index(got, "\x1b_Ga=p,i=4,p=1,c=4,r=2,C=1,q=2;\x1b\\")
	require.GreaterOrEqual(t, upload, 0, "upload missing from output %q", got)
	require.GreaterOrEqual(t, placement, 0, "placement missing from output %q", got)
	assert.Less(t, upload, placement)
	assert.Equal(t, 1, strings.Count(got, "a=t,"), "upload is written once")
}

func TestImageModelLifecycle(t *testing.T) {
	out := &syncBuffer{}
	m := newTestImageModel(out).At(2, 3).Size(4, 2)
	assert.Equal(t, "    \n    ", m.View(), "nothing is placed before the upload")

	msg := m.Init()()
	assert.Equal(t, "\x1b_Ga=t,f=100,i=4,q=2;cG5n\x1b\\", out.String())

	m, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	require.NoError(t, m.Err())
	assert.True(t, m.Ready())

	view := m.View()
	assert.False(t, strings.Contains(view, "a=t"), "the view never carries the upload")
	assert.True(t, strings.HasPrefix(view, "    \n    "))
	assert.True(t, strings.HasSuffix(view, "\x1b[s\x1b[2;3H\x1b_Ga=p,i=4,p=1,c=4,r=2,C=1,q=2;\x1b\\\x1b[u"))
}

func TestImageModelTmux(t *testing.T) {
	out := &syncBuffer{}
	m := newTestImageModel(out).Size(1, 1)
	m.tmux = true
	m, _ = m.Update(m.Init()())
	assert.Equal(t, "\x1bPtmux;\x1b\x1b_Ga=t,f=100,i=4,q=2;cG5n\x1b\x1b\\\x1b\\", out.String())
	assert.Contains(t, m.View(), "\x1bPtmux;\x1b\x1b_Ga=p,i=4")
}

func TestImageModelFit(t *testing.T) {
	m := newTestImageModel(&syncBuffer{}).At(3, 5).Fit()
	m, _ = m.Update(m.Init()())
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "c=76,r=22")

	m, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Contains(t, m.View(), "c=36,r=8")

	// explicit size wins over window updates
	m = m.Size(2, 2)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "c=2,r=2")
}

func TestImageModelIgnoresOtherImages(t *testing.T) {
	m := newTestImageModel(&syncBuffer{}).Size(1, 1)
	m, cmd := m.Update(transmittedMsg{id: 99})
	assert.Nil(t, cmd)
	assert.False(t, m.Ready())
	assert.Equal(t, " ", m.View())
}

func TestImageModelError(t *testing.T) {
	m := newTestImageModel(&syncBuffer{}).Size(1, 1)
	m, _ = m.Update(transmittedMsg{id: 4, err: errors.New("boom")})
	assert.ErrorContains(t, m.Err(), "boom")
	assert.Equal(t, " ", m.View())
}

func TestImageModelWriteError(t *testing.T) {
	m := NewImageModel(4, []byte("png")).Output(failingWriter{}).Size(1, 1)
	m, _ = m.Update(m.Init()())
	assert.ErrorContains(t, m.Err(), "disk full")
	assert.False(t, m.Ready())
}

func TestImageModelClear(t *testing.T) {
	m := newTestImageModel(&syncBuffer{})
	assert.Equal(t, "\x1b_Ga=d,d=I,i=4,q=2;\x1b\\", m.Clear())
}

func TestBlankPlaceholder(t *testing.T) {
	assert.Equal(t, "", BlankPlaceholder(0, 3))
	assert.Equal(t, "", BlankPlaceholder(3, 0))
	assert.Equal(t, "  \n  \n  ", BlankPlaceholder(2, 3))
}
