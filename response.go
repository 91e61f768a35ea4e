package kittygfx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// replyDataSize caps the APC payload kept per reply. Longer messages are cut.
const replyDataSize = 4096

// ErrorCode is the POSIX style error name a terminal reports for a failed command
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "ENOENT"
	CodeInvalidArgument ErrorCode = "EINVAL"
	CodeIOError         ErrorCode = "EIO"
	CodeTooDeep         ErrorCode = "ETOODEEP"
	CodeCycle           ErrorCode = "ECYCLE"
	CodeNoParent        ErrorCode = "ENOPARENT"

	// CodeUnknown marks a failure whose code is not documented. The whole
	// status line is kept in Response.Message.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Known reports whether the terminal sent one of the documented codes
func (c ErrorCode) Known() bool {
	switch c {
	case CodeNotFound, CodeInvalidArgument, CodeIOError, CodeTooDeep, CodeCycle, CodeNoParent:
		return true
	}
	return false
}

// Response is a terminal's answer to a graphics command:
//
//	ESC _G i=<id>[,I=<number>][,p=<placement>];OK ESC \
//	ESC _G i=<id>;ENOENT:<message> ESC \
type Response struct {
	ImageID     uint32
	ImageNumber uint32
	PlacementID uint32
	OK          bool
	Code        ErrorCode
	Message     string
}

// Err converts a failure response into an error, returning nil for OK
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	return &ResponseError{Response: *r}
}

// ResponseError is a failure reported by the terminal
type ResponseError struct {
	Response Response
}

func (e *ResponseError) Error() string {
	if e.Response.Message == "" {
		return fmt.Sprintf("terminal rejected image %d: %s", e.Response.ImageID, e.Response.Code)
	}
	return fmt.Sprintf("terminal rejected image %d: %s: %s", e.Response.ImageID, e.Response.Code, e.Response.Message)
}

// ParseResponse parses one complete graphics reply. Surrounding whitespace is ignored.
func ParseResponse(reply []byte) (*Response, error) {
	in := bytes.TrimSpace(reply)
	if !bytes.HasPrefix(in, []byte(apcStart)) {
		return nil, &ParseError{Reply: reply, Reason: "missing graphics reply prefix"}
	}
	p := newReplyParser()
	seq, _, n, state := ansi.DecodeSequence(in, ansi.NormalState, p)
	if state != ansi.NormalState || !bytes.HasSuffix(seq, []byte(apcEnd)) {
		return nil, &ParseError{Reply: reply, Reason: "missing string terminator"}
	}
	if n != len(in) {
		return nil, &ParseError{Reply: reply, Reason: "trailing bytes after reply"}
	}
	return parseReply(reply, p.Data())
}

// parseReply decodes the APC payload of a graphics reply, "G" included
func parseReply(reply, data []byte) (*Response, error) {
	body, ok := bytes.CutPrefix(data, []byte("G"))
	if !ok {
		return nil, &ParseError{Reply: reply, Reason: "missing graphics reply prefix"}
	}
	control, msg, found := bytes.Cut(body, []byte(";"))
	if !found {
		return nil, &ParseError{Reply: reply, Reason: "missing status separator"}
	}

	var resp Response
	for _, kv := range bytes.Split(control, []byte(",")) {
		if len(kv) == 0 {
			continue
		}
		key, value, ok := bytes.Cut(kv, []byte("="))
		if !ok {
			return nil, &ParseError{Reply: reply, Reason: fmt.Sprintf("field %q is not key=value", kv)}
		}
		n, err := strconv.ParseUint(string(value), 10, 32)
		if err != nil {
			return nil, &ParseError{Reply: reply, Reason: fmt.Sprintf("field %q is not a number", kv)}
		}
		switch string(key) {
		case "i":
			resp.ImageID = uint32(n)
		case "I":
			resp.ImageNumber = uint32(n)
		case "p":
			resp.PlacementID = uint32(n)
		default:
			// terminals may add keys in newer protocol revisions
		}
	}

	status := string(msg)
	if status == "OK" {
		resp.OK = true
		return &resp, nil
	}
	if status == "" {
		return nil, &ParseError{Reply: reply, Reason: "empty status"}
	}
	code, text, _ := strings.Cut(status, ":")
	resp.Code = ErrorCode(code)
	if !resp.Code.Known() {
		resp.Code = CodeUnknown
		resp.Message = status
		return &resp, nil
	}
	resp.Message = text
	return &resp, nil
}

// scanResponses extracts every complete graphics reply from a raw input stream,
// skipping unrelated bytes such as other escape sequences or typed keys.
func scanResponses(buf []byte) []*Response {
	var out []*Response
	p := newReplyParser()
	for len(buf) > 0 {
		seq, _, n, state := ansi.DecodeSequence(buf, ansi.NormalState, p)
		if state != ansi.NormalState {
			return out
		}
		if n == 0 {
			n = 1
		}
		if ansi.HasApcPrefix(seq) && bytes.HasSuffix(seq, []byte(apcEnd)) {
			if resp, err := parseReply(seq, p.Data()); err == nil {
				out = append(out, resp)
			}
		}
		buf = buf[n:]
	}
	return out
}

// newReplyParser returns a decoder sized for graphics replies, whose payload
// is a short status line
func newReplyParser() *ansi.Parser {
	p := ansi.NewParser()
	p.SetDataSize(replyDataSize)
	return p
}
