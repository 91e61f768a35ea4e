//go:build unix

package kittygfx

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IoctlWindowSize reads the geometry of the terminal on fd with TIOCGWINSZ. Many
// terminals leave the pixel fields zero; check Valid before relying on them.
func IoctlWindowSize(fd int) (WindowSize, error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return WindowSize{}, fmt.Errorf("failed to get window size: %w", err)
	}
	return WindowSize{
		Width:  int(ws.Xpixel),
		Height: int(ws.Ypixel),
		Cols:   int(ws.Col),
		Rows:   int(ws.Row),
	}, nil
}
