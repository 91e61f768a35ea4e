package kittygfx

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/blacktop/go-kittygfx/pkg/csi"
)

// DefaultQueryTimeout bounds how long a query waits for the terminal to answer
const DefaultQueryTimeout = 200 * time.Millisecond

// Querier sends queries to a terminal and parses its replies. Every query puts the
// terminal in raw mode and restores the previous mode before returning.
//
// A Querier holds no state between calls, but the terminal is shared: callers must
// not run queries on the same terminal concurrently.
type Querier struct {
	Term    Terminal
	Timeout time.Duration
	// Tmux wraps requests in tmux passthrough sequences
	Tmux bool
}

// NewQuerier returns a Querier for t with the default timeout and tmux detection
func NewQuerier(t Terminal) *Querier {
	return &Querier{Term: t, Timeout: DefaultQueryTimeout, Tmux: InTmux()}
}

func (q *Querier) timeout() time.Duration {
	if q.Timeout <= 0 {
		return DefaultQueryTimeout
	}
	return q.Timeout
}

func (q *Querier) wrap(seq string) string {
	if q.Tmux {
		return Passthrough(seq)
	}
	return seq
}

// query writes request in raw mode and collects the reply bytes until done accepts
// them. The previous terminal mode is restored on every path. A timeout or end of
// input with nothing read is ErrQueryTimeout; with a partial reply it is not an
// error and the caller decides what the bytes mean.
func (q *Querier) query(request string, done func([]byte) bool) (reply []byte, err error) {
	if q.Term == nil {
		return nil, errors.New("no terminal to query")
	}
	restore, err := q.Term.MakeRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore terminal mode: %w", rerr))
		}
	}()

	if _, err := io.WriteString(q.Term, request); err != nil {
		return nil, fmt.Errorf("failed to write query: %w", err)
	}
	reply, err = readReplies(q.Term, q.timeout(), done)
	if errors.Is(err, ErrQueryTimeout) || errors.Is(err, io.EOF) {
		if len(reply) == 0 {
			return nil, ErrQueryTimeout
		}
		return reply, nil
	}
	if err != nil {
		return reply, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}

// supportRequest is the 1x1 RGB query frame followed by a primary device attributes
// request. Terminals answer DA1 in order, so its reply marks the end of any
// graphics reply.
func (q *Querier) supportRequest() (string, error) {
	frames, err := SerializeAll(QuerySupport(SupportQueryImageID), []byte{0, 0, 0})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(q.wrap(f))
	}
	sb.WriteString(q.wrap(csi.PrimaryDeviceAttributes))
	return sb.String(), nil
}

func hasDeviceAttributes(buf []byte) bool {
	reports, _ := csi.Scan(buf)
	return slices.ContainsFunc(reports, func(r csi.Report) bool {
		return r.Kind() == csi.DeviceAttributes
	})
}

// CheckProtocolSupport reports whether the terminal answers a graphics query. An
// error reply still proves support. Timeouts and I/O failures mean false.
func (q *Querier) CheckProtocolSupport() bool {
	request, err := q.supportRequest()
	if err != nil {
		return false
	}
	reply, _ := q.query(request, hasDeviceAttributes)
	for _, resp := range scanResponses(reply) {
		if resp.ImageID == SupportQueryImageID && (resp.OK || resp.Code != "") {
			return true
		}
	}
	return false
}

func geometryReports(buf []byte) (pixels, cells *csi.Report) {
	reports, _ := csi.Scan(buf)
	for i := range reports {
		switch reports[i].Kind() {
		case csi.WindowPixels:
			pixels = &reports[i]
		case csi.WindowCells:
			cells = &reports[i]
		}
	}
	return pixels, cells
}

// WindowSize asks the terminal for its text area size in pixels (CSI 14 t) and in
// cells (CSI 18 t). It fails with ErrQueryTimeout when nothing arrives in time and
// with a *ParseError when the replies are incomplete or malformed.
func (q *Querier) WindowSize() (WindowSize, error) {
	request := q.wrap(csi.TextAreaSizePixels) + q.wrap(csi.TextAreaSizeCells)
	reply, err := q.query(request, func(buf []byte) bool {
		p, c := geometryReports(buf)
		return p != nil && c != nil
	})
	if len(reply) == 0 {
		return WindowSize{}, err
	}
	ws, perr := parseWindowSize(reply)
	return ws, errors.Join(perr, err)
}

func parseWindowSize(reply []byte) (WindowSize, error) {
	pixels, cells := geometryReports(reply)
	if pixels == nil || cells == nil {
		return WindowSize{}, &ParseError{Reply: reply, Reason: "expected both pixel and cell size reports"}
	}
	width, height, err := pixels.Size()
	if err != nil {
		return WindowSize{}, &ParseError{Reply: reply, Reason: err.Error()}
	}
	cols, rows, err := cells.Size()
	if err != nil {
		return WindowSize{}, &ParseError{Reply: reply, Reason: err.Error()}
	}
	return WindowSize{Width: width, Height: height, Cols: cols, Rows: rows}, nil
}

// CellSize asks the terminal for the size of one cell in pixels (CSI 16 t)
func (q *Querier) CellSize() (width, height int, err error) {
	isCell := func(r csi.Report) bool { return r.Kind() == csi.CellPixels }
	reply, err := q.query(q.wrap(csi.CellSizePixels), func(buf []byte) bool {
		reports, _ := csi.Scan(buf)
		return slices.ContainsFunc(reports, isCell)
	})
	if len(reply) == 0 {
		return 0, 0, err
	}
	reports, _ := csi.Scan(reply)
	i := slices.IndexFunc(reports, isCell)
	if i < 0 {
		return 0, 0, errors.Join(&ParseError{Reply: reply, Reason: "expected a cell size report"}, err)
	}
	w, h, perr := reports[i].Size()
	if perr != nil {
		return 0, 0, errors.Join(&ParseError{Reply: reply, Reason: perr.Error()}, err)
	}
	return w, h, err
}

// CheckProtocolSupport queries the controlling terminal for graphics protocol support
func CheckProtocolSupport() bool {
	t, err := OpenTTY()
	if err != nil {
		return false
	}
	defer t.Close()
	return NewQuerier(t).CheckProtocolSupport()
}

// GetWindowSize queries the controlling terminal for its geometry
func GetWindowSize() (WindowSize, error) {
	t, err := OpenTTY()
	if err != nil {
		return WindowSize{}, err
	}
	defer t.Close()
	return NewQuerier(t).WindowSize()
}
