/*
Copyright © 2024 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/blacktop/go-kittygfx"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	clear      bool
	configPath string
)

func init() {
	log.SetHandler(clihander.Default)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+filepath.Join(configDir(), "config.toml")+")")
	rootCmd.PersistentFlags().Bool("tmux", false, "Force tmux passthrough")
	rootCmd.PersistentFlags().Int("quiet", 2, "Replies the terminal sends: 0 all, 1 errors only, 2 none")

	rootCmd.Flags().BoolVarP(&clear, "clear", "c", false, "Clear the image after displaying it")
	rootCmd.Flags().Uint32("id", 0, "Image id to transmit as (0 lets the terminal choose)")
	rootCmd.Flags().Uint32("cols", 0, "Columns to scale the image to")
	rootCmd.Flags().Uint32("rows", 0, "Rows to scale the image to")
	rootCmd.Flags().Int32("z", 0, "Z-index of the placement")
	rootCmd.Flags().BoolP("compress", "z", false, "Zlib compress the payload")
	rootCmd.Flags().Int("max-width", 0, "Downscale images wider than this many pixels")
	rootCmd.Flags().String("medium", "", "Transmission medium: direct, file or temp")
}

// settings resolves the config file and lets explicitly set flags override it
func settings(cmd *cobra.Command) (*Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("quiet") {
		q, _ := flags.GetInt("quiet")
		cfg.Quiet = &q
	}
	if flags.Changed("tmux") {
		cfg.Tmux, _ = flags.GetBool("tmux")
	}
	if flags.Lookup("compress") != nil && flags.Changed("compress") {
		cfg.Compress, _ = flags.GetBool("compress")
	}
	if flags.Lookup("max-width") != nil && flags.Changed("max-width") {
		cfg.MaxWidth, _ = flags.GetInt("max-width")
	}
	if flags.Lookup("medium") != nil && flags.Changed("medium") {
		cfg.Medium, _ = flags.GetString("medium")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Tmux {
		kittygfx.ForceTmux(true)
	}
	if kittygfx.InTmux() {
		if err := kittygfx.EnableTmuxPassthrough(); err != nil {
			log.WithError(err).Warn("Failed to enable tmux passthrough")
		}
	}
	log.WithFields(log.Fields{
		"quiet":    cfg.QuietLevel(),
		"tmux":     kittygfx.InTmux(),
		"compress": cfg.Compress,
		"medium":   cfg.Medium,
	}).Debug("Settings")
	return cfg, nil
}

func newDisplay(cfg *Config) *kittygfx.ImageDisplay {
	return kittygfx.NewImageDisplay(os.Stdout).Quiet(cfg.QuietLevel()).Tmux(kittygfx.InTmux())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kittycat FILE",
	Short: "Display images with the kitty graphics protocol",
	Args:  cobra.ExactArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := settings(cmd)
		if err != nil {
			log.Fatalf("Invalid settings: %v", err)
		}

		img, err := loadImage(args[0], cfg.MaxWidth)
		if err != nil {
			log.Fatalf("Failed to open image: %v", err)
		}

		id, _ := cmd.Flags().GetUint32("id")
		cols, _ := cmd.Flags().GetUint32("cols")
		rows, _ := cmd.Flags().GetUint32("rows")
		z, _ := cmd.Flags().GetInt32("z")
		if clear && id == 0 {
			id = defaultImageID
		}

		b := kittygfx.NewBuilder().
			Action(kittygfx.TransmitAndDisplay).
			Quiet(cfg.QuietLevel())
		if id != 0 {
			b.ImageID(id)
		}
		if cols != 0 || rows != 0 {
			b.DisplayArea(cols, rows)
		}
		if z != 0 {
			b.ZIndex(z)
		}

		medium, _ := parseMedium(cfg.Medium)
		gfx, data, cleanup, err := transmitCommand(b, img, medium, cfg.Compress, args[0])
		if err != nil {
			log.Fatalf("Failed to build graphics command: %v", err)
		}
		log.Debugf("Sending %s", gfx)

		d := newDisplay(cfg)
		if err := d.Send(gfx, data); err != nil {
			cleanup()
			log.Fatalf("Failed to display image: %v", err)
		}
		fmt.Println()

		if clear { // Clear the image after displaying it
			time.Sleep(1 * time.Second)
			if err := d.Delete(id); err != nil {
				log.Fatalf("Failed to clear image: %v", err)
			}
		}
	},
}

// defaultImageID is used when an image has to be referenced again later
const defaultImageID = 1

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
