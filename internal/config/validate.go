package config

import (
	"fmt"
	"os"
	"strings"
)

// ViolationKind classifies what a validation violation is about.
type ViolationKind string

const (
	// InvalidRange marks a numeric parameter outside its allowed range.
	InvalidRange ViolationKind = "invalid-range"
	// InvalidEnum marks a parameter outside its set of allowed values.
	InvalidEnum ViolationKind = "invalid-enum"
	// ResourceNotFound marks a referenced file that does not exist or is
	// not a regular file.
	ResourceNotFound ViolationKind = "resource-not-found"
)

// Violation is one reason a configuration was rejected.
type Violation struct {
	Kind   ViolationKind
	Field  string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Field, v.Detail, v.Kind)
}

// ValidationError carries every violation found in one pass, so a user
// fixing a configuration sees the full list instead of one problem per
// attempt.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "config: " + e.Violations[0].String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: %d violations:", len(e.Violations))
	for _, v := range e.Violations {
		sb.WriteString("\n  - ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// checker accumulates violations across the individual checks.
type checker struct {
	violations []Violation
}

func (c *checker) add(kind ViolationKind, field, format string, args ...any) {
	c.violations = append(c.violations, Violation{
		Kind:   kind,
		Field:  field,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (c *checker) intRange(field string, v, lo, hi int) {
	if v < lo || v > hi {
		c.add(InvalidRange, field, "%d outside [%d, %d]", v, lo, hi)
	}
}

func (c *checker) unitRange(field string, v float64) {
	if v < 0 || v > 1 {
		c.add(InvalidRange, field, "%g outside [0, 1]", v)
	}
}

func (c *checker) positive(field string, v int) {
	if v < 1 {
		c.add(InvalidRange, field, "%d must be at least 1", v)
	}
}

func (c *checker) file(field, path string) {
	if path == "" {
		c.add(ResourceNotFound, field, "no path configured")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		c.add(ResourceNotFound, field, "%s: %v", path, err)
		return
	}
	if info.IsDir() {
		c.add(ResourceNotFound, field, "%s is a directory, not a file", path)
	}
}

// creatableDir creates the directory an output file will land in, the one
// write validation performs. MkdirAll keeps it idempotent across reruns.
func (c *checker) creatableDir(field, output string) {
	dir := outputDir(output)
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.add(ResourceNotFound, field, "create %s: %v", dir, err)
	}
}

func (c *checker) enum(field, v string, allowed []string) {
	for _, a := range allowed {
		if v == a {
			return
		}
	}
	c.add(InvalidEnum, field, "%q not one of %s", v, strings.Join(allowed, ", "))
}

func (c *checker) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: c.violations}
}

// encoderPresets are the speed presets x264 accepts.
var encoderPresets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

func (c *Common) check(ck *checker) {
	ck.file("input", c.Input)
	ck.file("hef", c.HEFPath)
	ck.file("postprocess_so", c.PostprocessSO)
	ck.creatableDir("output", c.Output)

	ck.intRange("inference_width", c.InferenceWidth, 1, 8192)
	ck.intRange("inference_height", c.InferenceHeight, 1, 8192)
	ck.positive("bitrate_kbps", c.BitrateKbps)
	ck.enum("encoder_preset", c.EncoderPreset, encoderPresets)
	ck.positive("queue_depth", c.QueueDepth)
	ck.unitRange("score_threshold", c.ScoreThreshold)
	ck.unitRange("nms_iou", c.NMSIOU)
	if c.ProgressEvery < 0 {
		ck.add(InvalidRange, "progress_every", "%d must not be negative", c.ProgressEvery)
	}
}

// Validate checks the split-merge configuration and returns nil or a
// *ValidationError listing every violation.
func (c *SplitMerge) Validate() error {
	var ck checker
	c.check(&ck)
	return ck.err()
}

// MaxTilesPerAxis bounds the tile grid. Beyond this the tiles get too
// small for the network input to carry useful detail.
const MaxTilesPerAxis = 20

// Validate checks the tiling configuration and returns nil or a
// *ValidationError listing every violation. It also folds the flat tiling
// fields into the Tiling and Aggregation structs consumed downstream.
func (c *TileAggregate) Validate() error {
	c.syncTiling()

	var ck checker
	c.check(&ck)

	ck.intRange("tiles_x", c.TilesX, 1, MaxTilesPerAxis)
	ck.intRange("tiles_y", c.TilesY, 1, MaxTilesPerAxis)
	ck.unitRange("overlap_x", c.OverlapX)
	ck.unitRange("overlap_y", c.OverlapY)
	if c.TilingMode != TilingModeSingleScale && c.TilingMode != TilingModeMultiScale {
		ck.add(InvalidEnum, "tiling_mode", "%d not one of 0 (single-scale), 1 (multi-scale)", c.TilingMode)
	}
	ck.unitRange("iou_threshold", c.IOUThreshold)
	ck.unitRange("border_threshold", c.BorderThreshold)

	return ck.err()
}
