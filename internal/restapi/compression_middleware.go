package restapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressibleTypes are the only payloads worth gzipping here: API envelopes
// and the debug page. Frames over /ws/live never pass through this wrapper.
var compressibleTypes = []string{"application/json", "text/html"}

type CompressionConfig struct {
	MinSize int
	Level   int
	Types   []string
}

func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   6,
		Types:   compressibleTypes,
	}
}

// NewCompressionMiddleware wraps handlers with gzhttp. An invalid config
// falls back to gzhttp's defaults.
func NewCompressionMiddleware(config CompressionConfig) func(http.Handler) http.Handler {
	types := config.Types
	if len(types) == 0 {
		types = compressibleTypes
	}
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(config.MinSize),
		gzhttp.CompressionLevel(config.Level),
		gzhttp.ContentTypes(types),
	)
	return func(next http.Handler) http.Handler {
		if err != nil {
			return gzhttp.GzipHandler(next)
		}
		return wrapper(next)
	}
}

// CompressionMiddleware gzips large JSON responses. Marker lists for a big
// fleet and geofence lists with polygon paths are the usual beneficiaries.
func CompressionMiddleware(next http.Handler) http.Handler {
	return NewCompressionMiddleware(DefaultCompressionConfig())(next)
}
