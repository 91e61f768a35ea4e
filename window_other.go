//go:build !unix

package kittygfx

import "errors"

// IoctlWindowSize is only available on unix systems
func IoctlWindowSize(fd int) (WindowSize, error) {
	return WindowSize{}, errors.New("failed to get window size: TIOCGWINSZ is not supported on this platform")
}
