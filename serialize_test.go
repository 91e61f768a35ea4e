package kittygfx

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitFrame(t *testing.T, frame string) (control, payload string) {
	t.Helper()
	require.True(t, strings.HasPrefix(frame, "\x1b_G"), "frame %q has no APC prefix", frame)
	require.True(t, strings.HasSuffix(frame, "\x1b\\"), "frame %q has no terminator", frame)
	body := strings.TrimSuffix(strings.TrimPrefix(frame, "\x1b_G"), "\x1b\\")
	control, payload, found := strings.Cut(body, ";")
	require.True(t, found, "frame %q has no separator", frame)
	return control, payload
}

func randomPayload(n int) []byte {
	r := rand.New(rand.NewSource(int64(n)))
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func pngCommand(t *testing.T) *Command {
	t.Helper()
	cmd, err := NewBuilder().Action(TransmitOnly).Format(PNG).ImageID(1).Build()
	require.NoError(t, err)
	return cmd
}

func TestSerializeEmptyPayload(t *testing.T) {
	frames, err := SerializeAll(DeleteAll(), nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "\x1b_Ga=d,d=a;\x1b\\", frames[0])

	frames, err = SerializeAll(pngCommand(t), []byte{})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	_, payload := splitFrame(t, frames[0])
	assert.Empty(t, payload)
}

func TestSerializeSingleFrame(t *testing.T) {
	frames, err := SerializeAll(pngCommand(t), []byte("hello"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "\x1b_Ga=t,f=100,i=1;aGVsbG8=\x1b\\", frames[0])
}

func TestSerializeSupportQuery(t *testing.T) {
	frames, err := SerializeAll(QuerySupport(SupportQueryImageID), []byte{0, 0, 0})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "\x1b_Ga=q,f=24,t=d,s=1,v=1,i=31;AAAA\x1b\\", frames[0])
}

func TestSerializeChunkBoundary(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantFrames int
	}{
		{"exactly one chunk", 3072, 1},
		{"one byte over", 3073, 2},
		{"two full chunks", 6144, 2},
		{"four frames", 10000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := SerializeAll(pngCommand(t), randomPayload(tt.size))
			require.NoError(t, err)
			assert.Len(t, frames, tt.wantFrames)
		})
	}
}

func TestSerializeContinuationFlags(t *testing.T) {
	payload := randomPayload(10000)
	frames, err := SerializeAll(pngCommand(t), payload)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	for i, frame := range frames {
		control, chunk := splitFrame(t, frame)
		assert.LessOrEqual(t, len(chunk), MaxChunkSize)
		switch i {
		case 0:
			assert.Equal(t, "a=t,f=100,i=1,m=1", control)
			assert.Len(t, chunk, MaxChunkSize)
		case len(frames) - 1:
			assert.Equal(t, "m=0", control)
			assert.Len(t, chunk, base64.StdEncoding.EncodedLen(len(payload))-3*MaxChunkSize)
		default:
			assert.Equal(t, "m=1", control)
			assert.Len(t, chunk, MaxChunkSize)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 4, 3071, 3072, 3073, 4096, 12288, 65537} {
		payload := randomPayload(size)
		frames, err := SerializeAll(pngCommand(t), payload)
		require.NoError(t, err)

		var encoded strings.Builder
		for _, frame := range frames {
			_, chunk := splitFrame(t, frame)
			// every chunk decodes on its own, no quantum is split
			_, err := base64.StdEncoding.DecodeString(chunk)
			require.NoError(t, err)
			encoded.WriteString(chunk)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded.String())
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, decoded), "payload of %d bytes did not survive", size)
	}
}

func TestFramesAreLazyAndSingleUse(t *testing.T) {
	frames, err := Serialize(pngCommand(t), randomPayload(5000))
	require.NoError(t, err)
	assert.Equal(t, 2, frames.Len())

	first, ok := frames.Next()
	require.True(t, ok)
	assert.Contains(t, first, ",m=1;")
	assert.Equal(t, 1, frames.Len())

	var rest []string
	for f := range frames.All() {
		rest = append(rest, f)
	}
	require.Len(t, rest, 1)
	assert.True(t, strings.HasPrefix(rest[0], "\x1b_Gm=0;"))

	_, ok = frames.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, frames.Len())
	for range frames.All() {
		t.Fatal("exhausted frames yielded again")
	}
}

func TestFramesStopEarly(t *testing.T) {
	frames, err := Serialize(pngCommand(t), randomPayload(10000))
	require.NoError(t, err)
	for range frames.All() {
		break
	}
	assert.Equal(t, 3, frames.Len())
}

func TestFramesWriteTo(t *testing.T) {
	payload := randomPayload(7000)
	want, err := SerializeAll(pngCommand(t), payload)
	require.NoError(t, err)

	frames, err := Serialize(pngCommand(t), payload)
	require.NoError(t, err)
	var buf bytes.Buffer
	n, err := frames.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, strings.Join(want, ""), buf.String())
}

func TestSerializeFileMedium(t *testing.T) {
	cmd, err := NewBuilder().Action(TransmitOnly).Format(PNG).Medium(TempFile).Path("/tmp/tty-graphics-protocol-1.png").Build()
	require.NoError(t, err)

	frames, err := SerializeAll(cmd, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	control, payload := splitFrame(t, frames[0])
	assert.Equal(t, "a=t,f=100,t=t", control)
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tty-graphics-protocol-1.png", string(decoded))

	_, err = Serialize(cmd, []byte("pixels"))
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestSerializeErrors(t *testing.T) {
	_, err := Serialize(nil, nil)
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = Serialize(DeleteAll(), []byte("data"))
	assert.ErrorIs(t, err, ErrSerialization)

	// a command assembled without the builder is re-checked
	_, err = Serialize(&Command{p: params{action: Delete}}, nil)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.ErrorIs(t, err, ErrValidation)

	var serr *SerializationError
	assert.ErrorAs(t, err, &serr)
}
