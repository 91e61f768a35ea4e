package kittygfx

import (
	"encoding/base64"
	"io"
	"iter"
	"strings"
)

const (
	// MaxChunkSize is the largest encoded payload carried by one frame. It is a
	// multiple of 4 so a chunk never ends inside a base64 quantum.
	MaxChunkSize = 4096

	apcStart = "\x1b_G"
	apcEnd   = "\x1b\\"
)

// Frames is the lazily produced sequence of escape sequences for one command.
// It is finite and can be consumed only once.
type Frames struct {
	control string
	encoded string
	offset  int
	emitted int
	total   int
}

// Serialize encodes payload and splits it into protocol frames. The first frame
// carries the full control data; a multi-frame sequence is terminated by m=0.
//
// For file, temp file and shared memory mediums the payload sent is the command's
// Path, so payload must be empty.
func Serialize(cmd *Command, payload []byte) (*Frames, error) {
	if cmd == nil {
		return nil, &SerializationError{Reason: "nil command"}
	}
	if err := cmd.p.validate(); err != nil {
		return nil, &SerializationError{Reason: "command failed validation", Err: err}
	}

	if cmd.p.action.carriesData() && cmd.p.medium != Direct {
		if len(payload) > 0 {
			return nil, &SerializationError{Reason: "payload given for medium " + cmd.p.medium.String()}
		}
		payload = []byte(cmd.p.path)
	} else if len(payload) > 0 && !cmd.p.action.carriesData() {
		return nil, &SerializationError{Reason: "payload given for " + cmd.p.action.String() + " command"}
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	total := (len(encoded) + MaxChunkSize - 1) / MaxChunkSize
	if total == 0 {
		total = 1
	}
	return &Frames{
		control: cmd.ControlData(),
		encoded: encoded,
		total:   total,
	}, nil
}

// SerializeAll is Serialize followed by collecting every frame
func SerializeAll(cmd *Command, payload []byte) ([]string, error) {
	frames, err := Serialize(cmd, payload)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, frames.Len())
	for f := range frames.All() {
		out = append(out, f)
	}
	return out, nil
}

// Len returns the number of frames not yet produced
func (f *Frames) Len() int {
	return f.total - f.emitted
}

// Next returns the next frame, or false once the sequence is exhausted
func (f *Frames) Next() (string, bool) {
	if f.emitted >= f.total {
		return "", false
	}
	end := min(f.offset+MaxChunkSize, len(f.encoded))
	chunk := f.encoded[f.offset:end]
	f.offset = end

	first := f.emitted == 0
	last := f.emitted == f.total-1
	f.emitted++

	var sb strings.Builder
	sb.Grow(len(apcStart) + len(f.control) + len(chunk) + len(apcEnd) + 8)
	sb.WriteString(apcStart)
	switch {
	case first && last:
		sb.WriteString(f.control)
	case first:
		sb.WriteString(f.control)
		sb.WriteString(",m=1")
	case last:
		sb.WriteString("m=0")
	default:
		sb.WriteString("m=1")
	}
	sb.WriteByte(';')
	sb.WriteString(chunk)
	sb.WriteString(apcEnd)
	return sb.String(), true
}

// All yields the remaining frames in order
func (f *Frames) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			frame, ok := f.Next()
			if !ok || !yield(frame) {
				return
			}
		}
	}
}

// WriteTo writes the remaining frames to w
func (f *Frames) WriteTo(w io.Writer) (int64, error) {
	return f.writeTo(w, nil)
}

func (f *Frames) writeTo(w io.Writer, wrap func(string) string) (int64, error) {
	var written int64
	for frame := range f.All() {
		if wrap != nil {
			frame = wrap(frame)
		}
		n, err := io.WriteString(w, frame)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
