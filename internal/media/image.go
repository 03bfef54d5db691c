package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"social-ingest/internal/logging"
	"social-ingest/internal/mediatypes"
	"social-ingest/internal/metrics"

	// Image format decoders
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP favicons and uploads
	_ "golang.org/x/image/tiff" // TIFF uploads
	_ "golang.org/x/image/webp" // WebP format support
)

var log = logging.For("media")

const (
	// MaxImageDimension is the maximum width or height decoded at full size.
	// Larger sources are downscaled before the profile transform.
	MaxImageDimension = 4096

	// MaxImagePixels caps total pixels (width * height) kept in memory.
	// 20MP is ~80MB as RGBA.
	MaxImagePixels = 20_000_000

	// MaxSourcePixels is the largest source decoded at all. A full decode
	// happens before any downscale, so this bounds the peak allocation.
	// 50MP covers 48MP phone photos.
	MaxSourcePixels = 50_000_000
)

// Output is an encoded asset ready for storage.
type Output struct {
	Data        []byte
	ContentType string
	// Ext is the key extension without the leading dot.
	Ext string
	// Passthrough is true when the source bytes are stored unchanged.
	Passthrough bool
}

// Transcoder converts downloaded images to the canonical form of their
// asset class. It holds no per-call state and is safe for concurrent use.
type Transcoder struct {
	MaxDimension    int
	MaxPixels       int
	MaxSourcePixels int
}

// NewTranscoder returns a Transcoder with the default decode limits.
func NewTranscoder() *Transcoder {
	return &Transcoder{
		MaxDimension:    MaxImageDimension,
		MaxPixels:       MaxImagePixels,
		MaxSourcePixels: MaxSourcePixels,
	}
}

// Transcode applies the profile of class to data. sourceURL is only used to
// infer the content type when a favicon has to be stored as received.
func (t *Transcoder) Transcode(data []byte, class AssetClass, sourceURL string) (*Output, error) {
	start := time.Now()
	defer func() {
		metrics.TranscodeDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	}()

	p := ProfileFor(class)
	if p.Fit == FitNone {
		return passthrough(data, sourceURL)
	}

	img, err := t.Decode(data)
	if err != nil {
		if class != ClassFavicon {
			return nil, err
		}
		return t.faviconFallback(data, sourceURL, p, err)
	}

	return encode(img, p)
}

// TranscodeUpload is Transcode for a file sent by a client. Classes stored
// as received take their content type from declaredType when it names an
// image, then from the filename extension, then from the bytes.
func (t *Transcoder) TranscodeUpload(data []byte, class AssetClass, filename, declaredType string) (*Output, error) {
	if ProfileFor(class).Fit != FitNone {
		return t.Transcode(data, class, "")
	}

	start := time.Now()
	defer func() {
		metrics.TranscodeDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	}()

	ct := ""
	if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil && mediatypes.IsImageContentType(mediaType) {
		ct = mediaType
	} else if ext := mediatypes.ExtFromFilename(filename); ext != "" {
		ct = mediatypes.GetMimeType(ext)
	}
	return passthroughAs(data, ct, mediatypes.ExtFromFilename(filename))
}

func (t *Transcoder) faviconFallback(data []byte, sourceURL string, p Profile, decodeErr error) (*Output, error) {
	log.Debug("favicon %s not decodable natively (%v), trying libvips", sourceURL, decodeErr)
	if IsVipsAvailable() {
		img, err := RasterizeWithVips(data, p.Width, p.Height)
		if err == nil {
			return encode(img, p)
		}
		log.Debug("libvips could not rasterize favicon %s: %v", sourceURL, err)
	}

	out, err := passthrough(data, sourceURL)
	if err != nil {
		return nil, err
	}
	log.Debug("storing favicon %s as received (%s)", sourceURL, out.ContentType)
	return out, nil
}

// passthrough keeps the source bytes, taking the content type from the URL
// extension and falling back to sniffing. Non-image payloads are rejected.
func passthrough(data []byte, sourceURL string) (*Output, error) {
	ext := mediatypes.ExtFromURL(sourceURL)
	return passthroughAs(data, mediatypes.GetMimeType(ext), strings.TrimPrefix(ext, "."))
}

// passthroughAs stores data under content type ct, sniffing when ct is empty
// or unknown. fallbackExt (no dot) names the key when ct has no canonical
// extension.
func passthroughAs(data []byte, ct, fallbackExt string) (*Output, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrTranscode)
	}

	if ct == "" || ct == mediatypes.DefaultContentType {
		ct = http.DetectContentType(data)
	}
	if !mediatypes.IsImageContentType(ct) {
		return nil, fmt.Errorf("%w: payload is %s, not an image", ErrTranscode, ct)
	}

	ext, ok := mediatypes.ExtForContentType(ct)
	if !ok {
		ext = fallbackExt
	}
	if ext == "" {
		ext = "img"
	}

	return &Output{Data: data, ContentType: ct, Ext: ext, Passthrough: true}, nil
}

// Decode decodes data with EXIF auto-orientation and downscales results
// that exceed the dimension or pixel limits. Sources whose header declares
// more than MaxSourcePixels are rejected before any pixel is decoded.
func (t *Transcoder) Decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	if t.MaxSourcePixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(t.MaxSourcePixels) {
		return nil, fmt.Errorf("%w: source %dx%d exceeds %d pixels",
			ErrTranscode, cfg.Width, cfg.Height, t.MaxSourcePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	// Orientation may have swapped the sides the header reported.
	b := img.Bounds()
	w, h := ConstrainedSize(b.Dx(), b.Dy(), t.MaxDimension, t.MaxPixels)
	if w == b.Dx() && h == b.Dy() {
		return img, nil
	}

	log.Info("constraining large image from %dx%d to %dx%d", b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// ConstrainedSize scales width x height down until neither side exceeds
// maxDimension and the area does not exceed maxPixels. Limits <= 0 are
// ignored.
func ConstrainedSize(width, height, maxDimension, maxPixels int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	w, h := width, height
	if maxDimension > 0 && (w > maxDimension || h > maxDimension) {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}

	if maxPixels > 0 && w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}

	return max(w, 1), max(h, 1)
}

func encode(img image.Image, p Profile) (*Output, error) {
	var out image.Image
	switch p.Fit {
	case FitContain:
		out = contain(img, p.Width, p.Height)
	default:
		out = imaging.Fill(img, p.Width, p.Height, imaging.Center, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch p.Format {
	case FormatPNG:
		if err := png.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
		}
	default:
		if err := jpeg.Encode(&buf, flatten(out), &jpeg.Options{Quality: p.Quality}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
		}
	}

	return &Output{Data: buf.Bytes(), ContentType: p.ContentType(), Ext: p.Ext()}, nil
}

// contain fits img inside w x h and centres it on a transparent canvas.
func contain(img image.Image, w, h int) image.Image {
	fitted := imaging.Fit(img, w, h, imaging.Lanczos)
	canvas := imaging.New(w, h, color.NRGBA{})
	return imaging.PasteCenter(canvas, fitted)
}

// flatten composites transparent pixels onto white so JPEG output does not
// turn them black.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
