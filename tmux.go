package kittygfx

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	passthroughOnce sync.Once
	passthroughErr  error

	forceTmux      bool
	forceTmuxMutex sync.RWMutex
)

// ForceTmux makes InTmux report true regardless of the environment, for sessions
// where TMUX is not exported (e.g. under sudo or ssh).
func ForceTmux(force bool) {
	forceTmuxMutex.Lock()
	defer forceTmuxMutex.Unlock()
	forceTmux = force
}

// InTmux reports whether output goes through tmux
func InTmux() bool {
	forceTmuxMutex.RLock()
	forced := forceTmux
	forceTmuxMutex.RUnlock()
	if forced {
		return true
	}
	return os.Getenv("TMUX") != "" || os.Getenv("TERM_PROGRAM") == "tmux"
}

// EnableTmuxPassthrough turns on allow-passthrough for the current pane. Graphics
// escapes are swallowed by tmux without it. The command runs at most once per process.
func EnableTmuxPassthrough() error {
	passthroughOnce.Do(func() {
		// -p sets the option for the current pane only
		cmd := exec.Command("tmux", "set", "-p", "allow-passthrough", "on")
		if out, err := cmd.CombinedOutput(); err != nil {
			passthroughErr = fmt.Errorf("failed to enable tmux passthrough: %w: %s", err, strings.TrimSpace(string(out)))
		}
	})
	return passthroughErr
}

// Passthrough wraps an escape sequence so tmux forwards it to the outer terminal:
// ESC P tmux; <sequence with every ESC doubled> ESC \
func Passthrough(seq string) string {
	if !strings.HasPrefix(seq, "\x1b") {
		return seq
	}
	return "\x1bPtmux;" + strings.ReplaceAll(seq, "\x1b", "\x1b\x1b") + "\x1b\\"
}
