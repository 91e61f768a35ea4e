package kittygfx

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cookedMode = 0x8a3b
	rawMode    = 0x0001
)

// modeRecorder tracks the input mode a query leaves behind
type modeRecorder struct {
	mu         sync.Mutex
	mode       int
	rawCalls   int
	restores   int
	makeRawErr error
	restoreErr error
}

func (m *modeRecorder) MakeRaw() (func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.makeRawErr != nil {
		return nil, m.makeRawErr
	}
	saved := m.mode
	m.mode = rawMode
	m.rawCalls++
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.mode = saved
		m.restores++
		return m.restoreErr
	}, nil
}

func (m *modeRecorder) current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// fakeTerminal answers reads from queued chunks and reports an expired deadline
// once they run out.
type fakeTerminal struct {
	modeRecorder
	chunks       [][]byte
	written      bytes.Buffer
	writeErr     error
	readErr      error
	deadlines    int
	readInCooked bool
}

func newFakeTerminal(chunks ...string) *fakeTerminal {
	f := &fakeTerminal{modeRecorder: modeRecorder{mode: cookedMode}}
	for _, c := range chunks {
		f.chunks = append(f.chunks, []byte(c))
	}
	return f
}

func (f *fakeTerminal) Read(p []byte) (int, error) {
	if f.current() != rawMode {
		f.readInCooked = true
	}
	if len(f.chunks) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(p, f.chunks[0])
	if n == len(f.chunks[0]) {
		f.chunks = f.chunks[1:]
	} else {
		f.chunks[0] = f.chunks[0][n:]
	}
	return n, nil
}

func (f *fakeTerminal) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakeTerminal) SetReadDeadline(time.Time) error {
	f.deadlines++
	return nil
}

func assertRestored(t *testing.T, m *modeRecorder) {
	t.Helper()
	assert.Equal(t, cookedMode, m.current(), "terminal mode was not restored")
	assert.Equal(t, m.rawCalls, m.restores, "every raw mode switch must be undone")
}

func newTestQuerier(term Terminal) *Querier {
	return &Querier{Term: term, Timeout: 50 * time.Millisecond}
}

func TestQuerierWindowSize(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{"single read", []string{"\x1b[4;600;800t\x1b[8;24;80t"}},
		{"split reads", []string{"\x1b[4;6", "00;800t\x1b", "[8;24;80t"}},
		{"reverse order with noise", []string{"x\x1b[8;24;80t\x1b[?1;2c\x1b[4;600;800t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newFakeTerminal(tt.chunks...)
			ws, err := newTestQuerier(term).WindowSize()
			require.NoError(t, err)
			assert.Equal(t, WindowSize{Width: 800, Height: 600, Cols: 80, Rows: 24}, ws)
			assert.Equal(t, 10, ws.CellWidth())
			assert.Equal(t, 25, ws.CellHeight())
			cols, rows := ws.CellsForImage(815, 601)
			assert.Equal(t, 82, cols)
			assert.Equal(t, 25, rows)

			assert.Equal(t, "\x1b[14t\x1b[18t", term.written.String())
			assert.False(t, term.readInCooked)
			assert.Equal(t, 1, term.rawCalls)
			assertRestored(t, &term.modeRecorder)
		})
	}
}

func TestQuerierWindowSizeTimeout(t *testing.T) {
	term := newFakeTerminal()
	_, err := newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assert.NotErrorIs(t, err, ErrParse)
	assertRestored(t, &term.modeRecorder)

	term = newFakeTerminal()
	term.readErr = io.EOF
	_, err = newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierWindowSizeParseErrors(t *testing.T) {
	for name, reply := range map[string]string{
		"pixels only":      "\x1b[4;600;800t",
		"cells only":       "\x1b[8;24;80t",
		"garbled numbers":  "\x1b[4;6x0;800t\x1b[8;24;80t",
		"too few fields":   "\x1b[4;600t\x1b[8;24;80t",
		"unrelated report": "\x1b[?62;22c",
	} {
		t.Run(name, func(t *testing.T) {
			term := newFakeTerminal(reply)
			_, err := newTestQuerier(term).WindowSize()
			assert.ErrorIs(t, err, ErrParse)
			assert.NotErrorIs(t, err, ErrQueryTimeout)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, reply, string(perr.Reply))
			assertRestored(t, &term.modeRecorder)
		})
	}
}

func TestQuerierRawModeFailure(t *testing.T) {
	term := newFakeTerminal("\x1b[4;600;800t\x1b[8;24;80t")
	term.makeRawErr = errors.New("not a tty")

	_, err := newTestQuerier(term).WindowSize()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQueryTimeout)
	assert.Zero(t, term.written.Len(), "nothing may be written outside raw mode")
	assert.Equal(t, cookedMode, term.current())
}

func TestQuerierRestoreFailureIsReported(t *testing.T) {
	restoreErr := errors.New("tcsetattr failed")
	term := newFakeTerminal("\x1b[4;600;800t\x1b[8;24;80t")
	term.restoreErr = restoreErr

	ws, err := newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, restoreErr)
	assert.Equal(t, 800, ws.Width)
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierWriteFailure(t *testing.T) {
	term := newFakeTerminal()
	term.writeErr = io.ErrClosedPipe

	_, err := newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierCellSize(t *testing.T) {
	term := newFakeTerminal("\x1b[6;25;10t")
	w, h, err := newTestQuerier(term).CellSize()
	require.NoError(t, err)
	assert.Equal(t, 10, w)
	assert.Equal(t, 25, h)
	assert.Equal(t, "\x1b[16t", term.written.String())
	assertRestored(t, &term.modeRecorder)

	term = newFakeTerminal()
	_, _, err = newTestQuerier(term).CellSize()
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assertRestored(t, &term.modeRecorder)
}

func TestCheckProtocolSupport(t *testing.T) {
	const request = "\x1b_Ga=q,f=24,t=d,s=1,v=1,i=31;AAAA\x1b\\\x1b[c"
	tests := []struct {
		name   string
		chunks []string
		want   bool
	}{
		{"ok reply", []string{"\x1b_Gi=31;OK\x1b\\\x1b[?62;c"}, true},
		{"error reply still means support", []string{"\x1b_Gi=31;EINVAL:bad data\x1b\\\x1b[?62;c"}, true},
		{"split reply", []string{"\x1b_Gi=3", "1;OK\x1b", "\\\x1b[?6", "2;c"}, true},
		{"reply without device attributes", []string{"\x1b_Gi=31;OK\x1b\\"}, true},
		{"device attributes only", []string{"\x1b[?62;c"}, false},
		{"reply for another image", []string{"\x1b_Gi=7;OK\x1b\\\x1b[?62;c"}, false},
		{"malformed reply", []string{"\x1b_Gi=31\x1b\\\x1b[?62;c"}, false},
		{"no reply", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newFakeTerminal(tt.chunks...)
			got := newTestQuerier(term).CheckProtocolSupport()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, request, term.written.String())
			assertRestored(t, &term.modeRecorder)
		})
	}
}

func TestCheckProtocolSupportRawModeFailure(t *testing.T) {
	term := newFakeTerminal("\x1b_Gi=31;OK\x1b\\\x1b[?62;c")
	term.makeRawErr = errors.New("not a tty")
	assert.False(t, newTestQuerier(term).CheckProtocolSupport())
	assert.Equal(t, cookedMode, term.current())
}

func TestQuerierTmux(t *testing.T) {
	term := newFakeTerminal("\x1b[4;600;800t\x1b[8;24;80t")
	q := newTestQuerier(term)
	q.Tmux = true
	_, err := q.WindowSize()
	require.NoError(t, err)
	assert.Equal(t, "\x1bPtmux;\x1b\x1b[14t\x1b\\\x1bPtmux;\x1b\x1b[18t\x1b\\", term.written.String())
}

func TestQuerierNoTerminal(t *testing.T) {
	_, err := (&Querier{}).WindowSize()
	assert.Error(t, err)
	assert.False(t, (&Querier{}).CheckProtocolSupport())
}

// pipeTerminal has no read deadline, so queries fall back to the timer path
type pipeTerminal struct {
	modeRecorder
	r *io.PipeReader
	w bytes.Buffer
}

func (p *pipeTerminal) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTerminal) Write(b []byte) (int, error) { return p.w.Write(b) }

func TestQuerierWithoutDeadline(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	term := &pipeTerminal{modeRecorder: modeRecorder{mode: cookedMode}, r: pr}

	go func() {
		pw.Write([]byte("\x1b[4;600;"))
		pw.Write([]byte("800t\x1b[8;24;80t"))
	}()

	q := newTestQuerier(term)
	q.Timeout = time.Second
	ws, err := q.WindowSize()
	require.NoError(t, err)
	assert.Equal(t, WindowSize{Width: 800, Height: 600, Cols: 80, Rows: 24}, ws)
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierWithoutDeadlineTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	term := &pipeTerminal{modeRecorder: modeRecorder{mode: cookedMode}, r: pr}

	start := time.Now()
	_, err := newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assertRestored(t, &term.modeRecorder)

	assert.False(t, newTestQuerier(term).CheckProtocolSupport())
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierWithoutDeadlineKeepsLateReply(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	term := &pipeTerminal{modeRecorder: modeRecorder{mode: cookedMode}, r: pr}

	q := newTestQuerier(term)
	q.Timeout = 30 * time.Millisecond
	assert.False(t, q.CheckProtocolSupport())
	assertRestored(t, &term.modeRecorder)

	// the terminal answers only after the first query gave up
	go pw.Write([]byte("\x1b[4;600;800t\x1b[8;24;80t"))

	q.Timeout = time.Second
	ws, err := q.WindowSize()
	require.NoError(t, err)
	assert.Equal(t, WindowSize{Width: 800, Height: 600, Cols: 80, Rows: 24}, ws)
	assertRestored(t, &term.modeRecorder)
}

func TestQuerierWithoutDeadlineReaderStops(t *testing.T) {
	pr, pw := io.Pipe()
	term := &pipeTerminal{modeRecorder: modeRecorder{mode: cookedMode}, r: pr}

	go func() {
		pw.Write([]byte("\x1b[4;600;"))
		pw.Close()
	}()

	_, err := newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, ErrParse, "a partial reply ended by EOF is malformed")

	// the reader is gone once the input is closed
	_, err = newTestQuerier(term).WindowSize()
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assertRestored(t, &term.modeRecorder)
}
