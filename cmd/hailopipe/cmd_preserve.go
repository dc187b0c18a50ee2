package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/topology"
)

var preserveFlags struct {
	input           string
	output          string
	hef             string
	postprocessSO   string
	bitrate         int
	inferenceWidth  int
	inferenceHeight int
}

var preserveCmd = &cobra.Command{
	Use:   "preserve",
	Short: "Detect at full resolution via a scaled inference branch",
	Long: `Preserve runs the split-merge shape: decoded frames tee into a
full-resolution bypass branch and an inference branch scaled down to the
network input size. Detections come back from the accelerator on the
scaled branch and are re-attached to the original frames, so the output
keeps the input resolution with boxes drawn over it.

Usage:
  hailopipe preserve --input in.mp4 --output out.mp4
  hailopipe preserve --input in.mp4 --output out.mp4 --hef yolov8.hef --bitrate 6000

The HEF and postprocess library default to the standard install
locations, or to the HAILOPIPE_HEF and HAILOPIPE_POSTPROCESS_SO
environment variables when set (a .env file in the working directory is
honored).`,
	Args: cobra.NoArgs,
	RunE: runPreserve,
}

func init() {
	f := preserveCmd.Flags()
	f.StringVar(&preserveFlags.input, "input", "", "Input video file (required)")
	f.StringVar(&preserveFlags.output, "output", "", "Output video file (required)")
	f.StringVar(&preserveFlags.hef, "hef", "", "Compiled network (HEF); default honors $HAILOPIPE_HEF")
	f.StringVar(&preserveFlags.postprocessSO, "postprocess-so", "", "Postprocess shared object; default honors $HAILOPIPE_POSTPROCESS_SO")
	f.IntVar(&preserveFlags.bitrate, "bitrate", config.DefaultBitrateKbps, "Output bitrate in kbps")
	f.IntVar(&preserveFlags.inferenceWidth, "inference-width", config.DefaultInferenceSize, "Network input width")
	f.IntVar(&preserveFlags.inferenceHeight, "inference-height", config.DefaultInferenceSize, "Network input height")
	_ = preserveCmd.MarkFlagRequired("input")
	_ = preserveCmd.MarkFlagRequired("output")
}

func runPreserve(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSplitMerge(rootFlags.config)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	cfg.Input = preserveFlags.input
	cfg.Output = preserveFlags.output
	if f.Changed("hef") {
		cfg.HEFPath = preserveFlags.hef
	}
	if f.Changed("postprocess-so") {
		cfg.PostprocessSO = preserveFlags.postprocessSO
	}
	if f.Changed("bitrate") {
		cfg.BitrateKbps = preserveFlags.bitrate
	}
	if f.Changed("inference-width") {
		cfg.InferenceWidth = preserveFlags.inferenceWidth
	}
	if f.Changed("inference-height") {
		cfg.InferenceHeight = preserveFlags.inferenceHeight
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	plan, err := topology.SplitMerge(cfg)
	if err != nil {
		return err
	}

	printPreserveBanner(cmd.OutOrStdout(), cfg)
	return runPlan(cmd, plan, cfg.ProgressEvery, cfg.Output)
}

func printPreserveBanner(out io.Writer, cfg config.SplitMerge) {
	fmt.Fprintf(out, "hailopipe %s: preserve-resolution detection\n", version)
	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  Input:           %s\n", cfg.Input)
	fmt.Fprintf(out, "  Output:          %s\n", cfg.Output)
	fmt.Fprintf(out, "  HEF:             %s\n", cfg.HEFPath)
	fmt.Fprintf(out, "  Postprocess:     %s\n", cfg.PostprocessSO)
	fmt.Fprintf(out, "  Inference size:  %dx%d\n", cfg.InferenceWidth, cfg.InferenceHeight)
	fmt.Fprintf(out, "  Bitrate:         %d kbps\n", cfg.BitrateKbps)
	fmt.Fprintf(out, "  Engine:          %s\n", rootFlags.engine)
	fmt.Fprintln(out)
}
