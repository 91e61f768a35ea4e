package kittygfx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"golang.org/x/term"
)

// Terminal is the byte channel to a terminal emulator plus control over its input
// mode. Implementations that also provide SetReadDeadline(time.Time) error get
// deadline bounded reads; others are read from a helper goroutine that stays
// attached to the terminal between queries.
type Terminal interface {
	io.Reader
	io.Writer
	// MakeRaw switches input to raw mode and returns a func restoring the
	// previous mode.
	MakeRaw() (restore func() error, err error)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// TTY is a Terminal backed by real file descriptors
type TTY struct {
	in    *os.File
	out   *os.File
	owned bool
}

// OpenTTY opens the controlling terminal (/dev/tty) for reading and writing, so
// queries work even when stdin or stdout are redirected.
func OpenTTY() (*TTY, error) {
	return openTTY("/dev/tty")
}

func openTTY(path string) (*TTY, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open controlling terminal: %w", err)
	}
	t := &TTY{in: f, out: f, owned: true}
	fd, err := t.fd()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open controlling terminal: %w", err)
	}
	if !term.IsTerminal(fd) {
		f.Close()
		return nil, ErrNotTerminal
	}
	return t, nil
}

// NewTTY returns a TTY reading from in and writing to out, typically os.Stdin and
// os.Stdout. The files are not closed by Close.
func NewTTY(in, out *os.File) *TTY {
	return &TTY{in: in, out: out}
}

func (t *TTY) Read(p []byte) (int, error)  { return t.in.Read(p) }
func (t *TTY) Write(p []byte) (int, error) { return t.out.Write(p) }

// SetReadDeadline bounds the next reads. It fails for files the runtime
// poller cannot watch. Queries do not use it where the descriptor can be polled
// directly, since a file whose Fd method was called ignores deadlines.
func (t *TTY) SetReadDeadline(d time.Time) error { return t.in.SetReadDeadline(d) }

// MakeRaw puts the input side into raw mode
func (t *TTY) MakeRaw() (func() error, error) {
	fd, err := t.fd()
	if err != nil {
		return nil, err
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal state: %w", err)
	}
	return func() error { return term.Restore(fd, old) }, nil
}

// Close closes the terminal if it was opened by OpenTTY
func (t *TTY) Close() error {
	if !t.owned {
		return nil
	}
	return t.in.Close()
}

// fd avoids (*os.File).Fd, which switches the file to blocking mode and would
// disable read deadlines.
func (t *TTY) fd() (int, error) {
	rc, err := t.in.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("failed to access terminal descriptor: %w", err)
	}
	fd := -1
	if err := rc.Control(func(u uintptr) { fd = int(u) }); err != nil {
		return 0, fmt.Errorf("failed to access terminal descriptor: %w", err)
	}
	return fd, nil
}

const readBufferSize = 256

// readPoller is implemented by terminals that can wait for input without reading
// it, so a timed out query leaves later input in place.
type readPoller interface {
	io.Reader
	pollRead(timeout time.Duration) (ready bool, err error)
}

// readReplies reads from t until done accepts the accumulated input or the timeout
// expires. Whatever arrived is returned either way; an expired timeout is reported
// as ErrQueryTimeout.
func readReplies(t Terminal, timeout time.Duration, done func([]byte) bool) ([]byte, error) {
	if p, ok := t.(readPoller); ok {
		return readWithPoll(p, timeout, done)
	}
	deadline := time.Now().Add(timeout)
	if d, ok := t.(readDeadliner); ok && d.SetReadDeadline(deadline) == nil {
		defer d.SetReadDeadline(time.Time{})
		return readWithDeadline(t, done)
	}
	return backgroundReader(t).read(timeout, done)
}

func readWithPoll(p readPoller, timeout time.Duration, done func([]byte) bool) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	var buf []byte
	chunk := make([]byte, readBufferSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, ErrQueryTimeout
		}
		ready, err := p.pollRead(remaining)
		if err != nil {
			return buf, err
		}
		if !ready {
			return buf, ErrQueryTimeout
		}
		n, err := p.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if n > 0 && done(buf) {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}
}

func readWithDeadline(r io.Reader, done func([]byte) bool) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, readBufferSize)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if n > 0 && done(buf) {
			return buf, nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return buf, ErrQueryTimeout
			}
			return buf, err
		}
	}
}

// asyncReader reads a terminal that can neither poll nor time out a Read. Its
// goroutine outlives a timed out query and hands what it reads to the next one,
// so a late reply is delayed rather than lost.
type asyncReader struct {
	data   chan []byte
	closed chan struct{}
	err    error // valid once closed is closed
}

var (
	asyncReadersMu sync.Mutex
	asyncReaders   = map[Terminal]*asyncReader{}
)

// backgroundReader returns the reader owning t's input, starting it on first use.
// Terminals must be comparable (pointers usually are) to share a reader between
// queries.
func backgroundReader(t Terminal) *asyncReader {
	if !reflect.TypeOf(t).Comparable() {
		return startAsyncReader(t, nil)
	}
	asyncReadersMu.Lock()
	defer asyncReadersMu.Unlock()
	if a, ok := asyncReaders[t]; ok {
		return a
	}
	a := startAsyncReader(t, func() {
		asyncReadersMu.Lock()
		delete(asyncReaders, t)
		asyncReadersMu.Unlock()
	})
	asyncReaders[t] = a
	return a
}

func startAsyncReader(r io.Reader, onExit func()) *asyncReader {
	a := &asyncReader{data: make(chan []byte), closed: make(chan struct{})}
	go func() {
		chunk := make([]byte, readBufferSize)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				a.data <- append([]byte(nil), chunk[:n]...)
			}
			if err != nil {
				if onExit != nil {
					onExit()
				}
				a.err = err
				close(a.closed)
				return
			}
		}
	}()
	return a
}

func (a *asyncReader) read(timeout time.Duration, done func([]byte) bool) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var buf []byte
	for {
		select {
		case data := <-a.data:
			buf = append(buf, data...)
			if done(buf) {
				return buf, nil
			}
		case <-a.closed:
			return buf, a.err
		case <-timer.C:
			return buf, ErrQueryTimeout
		}
	}
}
