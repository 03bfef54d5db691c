package media

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"social-ingest/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogLevel maps the application level to the most verbose libvips
// level that should reach our log.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		log.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		log.Warn("[%s] %s", domain, msg)
	default:
		log.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. It is only needed for favicons the Go decoders
// cannot read (SVG, ICO); without it those are stored as received.
// Call once at startup.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Logging must be configured before Startup.
	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      16 * 1024 * 1024,
		MaxCacheSize:     50,
	})

	vipsInitialized = true
	vipsAvailable = true
	log.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips. govips cannot be restarted afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		log.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// RasterizeWithVips loads data with libvips (which understands SVG and ICO)
// and shrinks it to fit width x height.
func RasterizeWithVips(data []byte, width, height int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vips load: %v", ErrTranscode, err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(width, height, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("%w: vips resize: %v", ErrTranscode, err)
	}

	out, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: vips export: %v", ErrTranscode, err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: decode vips output: %v", ErrTranscode, err)
	}
	return img, nil
}
