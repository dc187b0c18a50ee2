package gstpipe

import "strings"

// ErrorCategory is the classification of pipeline errors for logs and
// telemetry.
type ErrorCategory int

const (
	// ErrCategoryModel indicates model-loading failures: the network file,
	// the postprocess library, or their configuration.
	ErrCategoryModel ErrorCategory = iota
	// ErrCategoryDevice indicates accelerator failures: the device is
	// absent, busy, or its runtime misbehaves.
	ErrCategoryDevice
	// ErrCategoryIO indicates file access failures on the input or output
	// side.
	ErrCategoryIO
	// ErrCategoryCodec indicates decode, encode or format-negotiation
	// failures in the video path.
	ErrCategoryCodec
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

// String returns a human-readable name for the error category.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryModel:
		return "model"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryIO:
		return "io"
	case ErrCategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// Classify categorizes a pipeline error from its message and debug text.
//
// The split tells an operator what to reach for: model errors need a path
// or configuration fix, device errors mean the accelerator or its runtime
// is unhealthy, io errors point at the input/output files, and codec
// errors at the video itself. Classification is heuristic, based on the
// message text, since the underlying error domain is not exposed.
func Classify(errMsg, debug string) ErrorCategory {
	combined := strings.ToLower(errMsg) + " " + strings.ToLower(debug)

	// Most specific first: model problems mention hailo terms too, so
	// they must win over the device bucket.
	switch {
	case containsAny(combined, modelKeywords):
		return ErrCategoryModel
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	case containsAny(combined, ioKeywords):
		return ErrCategoryIO
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	default:
		return ErrCategoryUnknown
	}
}

var modelKeywords = []string{
	"hef",
	"postprocess",
	".so",
	"function-name",
	"batch-size",
	"network group",
	"output layer",
	"invalid model",
}

var deviceKeywords = []string{
	"hailort",
	"hailo device",
	"vdevice",
	"firmware",
	"device is busy",
	"device not found",
	"pcie",
	"hailo",
}

var ioKeywords = []string{
	"no such file",
	"could not open",
	"permission denied",
	"read error",
	"write error",
	"disk full",
	"is a directory",
	"resource not found",
}

var codecKeywords = []string{
	"decode",
	"encode",
	"codec",
	"caps",
	"negotiat",
	"h264",
	"parse",
	"format",
	"type of stream",
	"missing plugin",
	"demux",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
