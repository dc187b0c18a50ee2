// Package config holds the typed run configuration for both pipeline
// shapes and the validation that every run goes through before a graph is
// built. Defaults follow the standard Hailo suite install layout and can
// be overridden per-field by a YAML file, environment variables and flags,
// in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/tiling"
)

// Environment variables consulted for resource defaults, so deployments
// with relocated model files do not need flags on every invocation.
const (
	EnvHEF           = "HAILOPIPE_HEF"
	EnvPostprocessSO = "HAILOPIPE_POSTPROCESS_SO"
	EnvEncoderPreset = "HAILOPIPE_ENCODER_PRESET"
)

// Standard install locations of the Hailo suite resources.
const (
	DefaultHEFPath        = "/usr/local/hailo/resources/models/hailo8/yolov11m.hef"
	DefaultPostprocessSO  = "/usr/local/hailo/resources/so/libyolo_hailortpp_postprocess.so"
	DefaultInferenceSize  = 640
	DefaultBitrateKbps    = 4000
	DefaultQueueDepth     = 30
	DefaultScoreThreshold = 0.3
	DefaultNMSIOU         = 0.45
	DefaultEncoderPreset  = "ultrafast"
)

// Tiling modes accepted by the tile-aggregate shape.
const (
	TilingModeSingleScale = 0
	TilingModeMultiScale  = 1
)

// Common is the configuration shared by both pipeline shapes.
type Common struct {
	// Input is the source video file.
	Input string `yaml:"input"`

	// Output is the destination MP4 path, empty to skip writing a file.
	Output string `yaml:"output"`

	// Display renders to a window with an FPS readout instead of
	// discarding frames when no Output is set.
	Display bool `yaml:"display"`

	// HEFPath is the compiled network the inference element loads.
	HEFPath string `yaml:"hef"`

	// PostprocessSO is the shared object turning raw tensors into
	// detections; PostprocessFn selects a non-default entry point within
	// it, empty for the library's default.
	PostprocessSO string `yaml:"postprocess_so"`
	PostprocessFn string `yaml:"postprocess_fn"`

	// InferenceWidth/Height are the network input dimensions frames are
	// scaled to on the inference branch.
	InferenceWidth  int `yaml:"inference_width"`
	InferenceHeight int `yaml:"inference_height"`

	// BitrateKbps is the H.264 encoder target when writing Output, and
	// EncoderPreset the x264 speed/quality trade-off.
	BitrateKbps   int    `yaml:"bitrate_kbps"`
	EncoderPreset string `yaml:"encoder_preset"`

	// ScoreThreshold and NMSIOU configure the on-device NMS stage.
	ScoreThreshold float64 `yaml:"score_threshold"`
	NMSIOU         float64 `yaml:"nms_iou"`

	// QueueDepth bounds every queue in the graph, in buffers. Queues
	// never leak; a full queue blocks its producer.
	QueueDepth int `yaml:"queue_depth"`

	// ProgressEvery logs a frame-count line every N frames observed at
	// the monitor pad. 0 disables progress logging.
	ProgressEvery int `yaml:"progress_every"`
}

// SplitMerge configures the preserve-resolution shape: full frames bypass
// inference on one branch and rejoin the detections downstream.
type SplitMerge struct {
	Common `yaml:",inline"`
}

// TileAggregate configures the tiling shape: frames are cropped into an
// overlapping grid, tiles run inference individually and an aggregation
// stage merges the results back onto the full frame.
type TileAggregate struct {
	Common `yaml:",inline"`

	Tiling      tiling.Spec            `yaml:"-"`
	Aggregation tiling.AggregationSpec `yaml:"-"`

	// YAML- and flag-facing mirrors of the tiling parameters. TilingMode
	// is 0 for single-scale, 1 for multi-scale.
	TilesX               int     `yaml:"tiles_x"`
	TilesY               int     `yaml:"tiles_y"`
	OverlapX             float64 `yaml:"overlap_x"`
	OverlapY             float64 `yaml:"overlap_y"`
	TilingMode           int     `yaml:"tiling_mode"`
	IOUThreshold         float64 `yaml:"iou_threshold"`
	BorderThreshold      float64 `yaml:"border_threshold"`
	RemoveLargeLandscape bool    `yaml:"remove_large_landscape"`
	GroupByTile          bool    `yaml:"group_by_tile"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultCommon() Common {
	return Common{
		HEFPath:         envOr(EnvHEF, DefaultHEFPath),
		PostprocessSO:   envOr(EnvPostprocessSO, DefaultPostprocessSO),
		InferenceWidth:  DefaultInferenceSize,
		InferenceHeight: DefaultInferenceSize,
		BitrateKbps:     DefaultBitrateKbps,
		EncoderPreset:   envOr(EnvEncoderPreset, DefaultEncoderPreset),
		ScoreThreshold:  DefaultScoreThreshold,
		NMSIOU:          DefaultNMSIOU,
		QueueDepth:      DefaultQueueDepth,
		ProgressEvery:   100,
	}
}

// DefaultSplitMerge returns the split-merge configuration with standard
// resource paths, honoring the HAILOPIPE_* environment overrides.
func DefaultSplitMerge() SplitMerge {
	return SplitMerge{Common: defaultCommon()}
}

// DefaultTileAggregate returns the tiling configuration: a 2x2 grid with
// 20% overlap, single-scale, and the stock aggregation thresholds.
func DefaultTileAggregate() TileAggregate {
	c := TileAggregate{
		Common:          defaultCommon(),
		TilesX:          2,
		TilesY:          2,
		OverlapX:        0.2,
		OverlapY:        0.2,
		IOUThreshold:    0.3,
		BorderThreshold: 0.1,
	}
	c.ProgressEvery = 50
	c.syncTiling()
	return c
}

// syncTiling folds the flat YAML/flag fields into the tiling structs the
// rest of the module consumes.
func (c *TileAggregate) syncTiling() {
	mode := tiling.SingleScale
	if c.TilingMode == TilingModeMultiScale {
		mode = tiling.MultiScale
	}
	c.Tiling = tiling.Spec{
		TilesX:   c.TilesX,
		TilesY:   c.TilesY,
		OverlapX: c.OverlapX,
		OverlapY: c.OverlapY,
		Mode:     mode,
	}
	c.Aggregation = tiling.AggregationSpec{
		IOUThreshold:         c.IOUThreshold,
		BorderThreshold:      c.BorderThreshold,
		RemoveLargeLandscape: c.RemoveLargeLandscape,
		FlattenDetections:    !c.GroupByTile,
	}
}

// LoadSplitMerge reads a YAML file over the defaults. An empty path
// returns the defaults untouched.
func LoadSplitMerge(path string) (SplitMerge, error) {
	cfg := DefaultSplitMerge()
	if path == "" {
		return cfg, nil
	}
	if err := loadYAML(path, &cfg); err != nil {
		return SplitMerge{}, err
	}
	return cfg, nil
}

// LoadTileAggregate reads a YAML file over the defaults. An empty path
// returns the defaults untouched.
func LoadTileAggregate(path string) (TileAggregate, error) {
	cfg := DefaultTileAggregate()
	if path == "" {
		return cfg, nil
	}
	if err := loadYAML(path, &cfg); err != nil {
		return TileAggregate{}, err
	}
	cfg.syncTiling()
	return cfg, nil
}

func loadYAML(path string, into any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// outputDir returns the directory component of an output path that needs
// creating, empty when nothing does.
func outputDir(output string) string {
	if output == "" {
		return ""
	}
	dir := filepath.Dir(output)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// EnsureOutputDir creates the directory the output file will land in.
// Validate already does this as part of its resource checks; the helper
// serves runs that drive a pipeline without full validation.
func EnsureOutputDir(output string) error {
	dir := outputDir(output)
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create output directory %s: %w", dir, err)
	}
	return nil
}
