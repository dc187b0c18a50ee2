package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/joho/godotenv/autoload"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config string
	engine string
	debug  bool
}

var rootCmd = &cobra.Command{
	Use:   "hailopipe",
	Short: "Hailo-accelerated object detection on video files",
	Long: `hailopipe runs file-to-file object detection on Hailo accelerators in
two shapes: "preserve" keeps the input resolution and infers on a scaled
copy of every frame, "tile" crops frames into an overlapping grid and
aggregates per-tile detections for small-object accuracy.`,
	// Errors reach the user as one line from main; usage dumps belong to
	// flag mistakes only.
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "YAML file overriding the built-in defaults")
	pf.StringVar(&rootFlags.engine, "engine", "gst", "Pipeline engine: gst (hardware) or sim (token-level dry run)")
	pf.BoolVar(&rootFlags.debug, "debug", false, "Debug logging, graph description and per-event diagnostics")

	rootCmd.AddCommand(preserveCmd)
	rootCmd.AddCommand(tileCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
