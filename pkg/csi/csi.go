/*
Package csi holds the CSI (Control Sequence Introducer) queries used to discover terminal
geometry and a tokenizer for the reports terminals send back.
*/
package csi

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/x/ansi"
)

// maxParams is the parameter capacity of ansi.NewParser
const maxParams = 32

// Queries understood by xterm compatible terminals
const (
	PrimaryDeviceAttributes = "\x1b[c"   // DA1, answered by virtually every terminal
	TextAreaSizePixels      = "\x1b[14t" // CSI 4 ; height ; width t
	CellSizePixels          = "\x1b[16t" // CSI 6 ; height ; width t
	TextAreaSizeCells       = "\x1b[18t" // CSI 8 ; rows ; cols t
)

// Kind identifies a recognised report
type Kind int

const (
	Unknown Kind = iota
	DeviceAttributes
	WindowPixels
	CellPixels
	WindowCells
)

func (k Kind) String() string {
	switch k {
	case DeviceAttributes:
		return "DA1"
	case WindowPixels:
		return "WindowPixels"
	case CellPixels:
		return "CellPixels"
	case WindowCells:
		return "WindowCells"
	}
	return "Unknown"
}

// Report is one CSI sequence received from the terminal
type Report struct {
	Private byte // parameter prefix such as '?' or '>', 0 when absent
	Params  []int
	Final   byte
	Raw     string
}

// Kind classifies the report
func (r Report) Kind() Kind {
	switch r.Final {
	case 'c':
		if r.Private == '?' {
			return DeviceAttributes
		}
	case 't':
		if r.Private != 0 || len(r.Params) == 0 {
			return Unknown
		}
		switch r.Params[0] {
		case 4:
			return WindowPixels
		case 6:
			return CellPixels
		case 8:
			return WindowCells
		}
	}
	return Unknown
}

// Size returns the two numbers of a 14t, 16t or 18t report in (width, height)
// order: pixels for WindowPixels and CellPixels, columns and rows for WindowCells.
func (r Report) Size() (width, height int, err error) {
	switch r.Kind() {
	case WindowPixels, CellPixels, WindowCells:
	default:
		return 0, 0, fmt.Errorf("report %q is not a size report", r.Raw)
	}
	if len(r.Params) != 3 {
		return 0, 0, fmt.Errorf("size report %q has %d fields, want 3", r.Raw, len(r.Params))
	}
	return r.Params[2], r.Params[1], nil
}

// Scan splits buf into complete CSI reports. Bytes outside CSI sequences are
// skipped. The unterminated tail, if any, is returned as rest so the caller can
// append more input to it.
func Scan(buf []byte) (reports []Report, rest []byte) {
	p := ansi.NewParser()
	p.SetDataSize(1) // string payloads are never read
	for len(buf) > 0 {
		seq, _, n, state := ansi.DecodeSequence(buf, ansi.NormalState, nil)
		if state != ansi.NormalState {
			return reports, buf
		}
		if n == 0 {
			n = 1
		}
		if r, ok := parse(p, seq); ok {
			reports = append(reports, r)
		}
		buf = buf[n:]
	}
	return reports, nil
}

// parse decodes one complete CSI sequence. Reports with more parameters than
// the parser holds are dropped.
func parse(p *ansi.Parser, seq []byte) (Report, bool) {
	if !ansi.HasCsiPrefix(seq) {
		return Report{}, false
	}
	if bytes.Count(seq, []byte(";"))+bytes.Count(seq, []byte(":")) >= maxParams {
		return Report{}, false
	}
	ansi.DecodeSequence(seq, ansi.NormalState, p)

	cmd := ansi.Cmd(p.Command())
	if cmd.Final() == 0 {
		// cut short by a control byte
		return Report{}, false
	}
	r := Report{
		Raw:     string(seq),
		Private: cmd.Prefix(),
		Final:   cmd.Final(),
	}
	// Params aliases the parser's buffer
	for _, param := range p.Params() {
		r.Params = append(r.Params, param.Param(0))
	}
	return r, true
}
