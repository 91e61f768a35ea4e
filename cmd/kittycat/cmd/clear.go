package cmd

import (
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

func init() {
	clearCmd.Flags().Uint32("id", 0, "Only delete this image")
	rootCmd.AddCommand(clearCmd)
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete images from the terminal",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := settings(cmd)
		if err != nil {
			log.Fatalf("Invalid settings: %v", err)
		}
		d := newDisplay(cfg)

		if id, _ := cmd.Flags().GetUint32("id"); id != 0 {
			err = d.Delete(id)
		} else {
			err = d.ClearAll()
		}
		if err != nil {
			log.Fatalf("Failed to clear images: %v", err)
		}
	},
}
