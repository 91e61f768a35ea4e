package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/blacktop/go-kittygfx"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check graphics protocol support and report the window size",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := settings(cmd)
		if err != nil {
			log.Fatalf("Invalid settings: %v", err)
		}

		tty, err := kittygfx.OpenTTY()
		if err != nil {
			log.Fatalf("Failed to open terminal: %v", err)
		}
		defer tty.Close()

		q := kittygfx.NewQuerier(tty)
		q.Timeout = cfg.Timeout
		q.Tmux = kittygfx.InTmux()

		supported := q.CheckProtocolSupport()
		fmt.Printf("Graphics protocol: %t\n", supported)

		ws, err := q.WindowSize()
		if err != nil {
			log.WithError(err).Debug("Window size query failed, asking the kernel")
			ws, err = kittygfx.IoctlWindowSize(int(os.Stdout.Fd()))
			if err != nil {
				log.Fatalf("Failed to get window size: %v", err)
			}
		}
		fmt.Printf("Window: %dx%d px, %dx%d cells\n", ws.Width, ws.Height, ws.Cols, ws.Rows)
		if ws.Valid() {
			fmt.Printf("Cell:   %dx%d px\n", ws.CellWidth(), ws.CellHeight())
		} else if w, h, err := q.CellSize(); err == nil {
			fmt.Printf("Cell:   %dx%d px\n", w, h)
		}

		if !supported {
			os.Exit(1)
		}
	},
}
