package cmd

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/blacktop/go-kittygfx"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func init() {
	viewCmd.Flags().Uint32("id", defaultImageID, "Image id to upload as")
	viewCmd.Flags().Int("max-width", 0, "Downscale images wider than this many pixels")
	rootCmd.AddCommand(viewCmd)
}

type viewer struct {
	title string
	image kittygfx.ImageModel
}

func (v viewer) Init() tea.Cmd {
	return v.image.Init()
}

func (v viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return v, tea.Quit
		}
	}
	var cmd tea.Cmd
	v.image, cmd = v.image.Update(msg)
	return v, cmd
}

func (v viewer) View() string {
	if err := v.image.Err(); err != nil {
		return fmt.Sprintf("%s\n\nError: %v\n", v.title, err)
	}
	return v.title + "\n" + v.image.View()
}

// pngBytes returns p as PNG data, encoding decoded pixels when needed
func pngBytes(p *payload) ([]byte, error) {
	if p.format == kittygfx.PNG {
		return p.data, nil
	}
	img := &image.RGBA{
		Pix:    p.data,
		Stride: 4 * int(p.width),
		Rect:   image.Rect(0, 0, int(p.width), int(p.height)),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var viewCmd = &cobra.Command{
	Use:   "view FILE",
	Short: "Show an image full screen until q is pressed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := settings(cmd)
		if err != nil {
			log.Fatalf("Invalid settings: %v", err)
		}
		img, err := loadImage(args[0], cfg.MaxWidth)
		if err != nil {
			log.Fatalf("Failed to open image: %v", err)
		}
		data, err := pngBytes(img)
		if err != nil {
			log.Fatalf("Failed to prepare image: %v", err)
		}
		id, _ := cmd.Flags().GetUint32("id")

		v := viewer{
			title: filepath.Base(args[0]) + " (q to quit)",
			image: kittygfx.NewImageModel(id, data).Output(os.Stdout).At(2, 1).Fit(),
		}
		final, err := tea.NewProgram(v, tea.WithAltScreen(), tea.WithOutput(os.Stdout)).Run()
		if err != nil {
			log.Fatalf("Failed to run viewer: %v", err)
		}
		fmt.Fprint(os.Stdout, final.(viewer).image.Clear())
		if err := final.(viewer).image.Err(); err != nil {
			log.Fatalf("Failed to show image: %v", err)
		}
	},
}
