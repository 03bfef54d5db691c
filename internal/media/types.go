package media

import "errors"

// AssetClass selects the transcoding profile applied to an asset.
type AssetClass string

const (
	// ClassSocial covers avatars and post images pulled from social platforms.
	ClassSocial AssetClass = "social"
	// ClassOG is the preview image of an Open Graph page.
	ClassOG AssetClass = "og"
	// ClassProfile is a user's own profile photo.
	ClassProfile AssetClass = "profile"
	// ClassFavicon is a site icon.
	ClassFavicon AssetClass = "favicon"
	// ClassUpload is a direct user upload, stored as received.
	ClassUpload AssetClass = "upload"
)

// Fit controls how a source image is mapped onto the target box.
type Fit int

const (
	// FitNone stores the source unchanged.
	FitNone Fit = iota
	// FitCover scales to fill the box and crops the overflow, centred.
	FitCover
	// FitContain scales to fit inside the box and pads with transparency.
	FitContain
)

func (f Fit) String() string {
	switch f {
	case FitCover:
		return "cover"
	case FitContain:
		return "contain"
	default:
		return "none"
	}
}

// Format is the output encoding of a profile.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Profile is the target geometry and encoding for an asset class.
type Profile struct {
	Width   int
	Height  int
	Fit     Fit
	Format  Format
	Quality int
}

var profiles = map[AssetClass]Profile{
	ClassSocial:  {Width: 400, Height: 400, Fit: FitCover, Format: FormatJPEG, Quality: 80},
	ClassOG:      {Width: 600, Height: 315, Fit: FitCover, Format: FormatJPEG, Quality: 85},
	ClassProfile: {Width: 512, Height: 512, Fit: FitCover, Format: FormatJPEG, Quality: 85},
	ClassFavicon: {Width: 128, Height: 128, Fit: FitContain, Format: FormatPNG},
	ClassUpload:  {Fit: FitNone},
}

// ProfileFor returns the profile of class. Unknown classes are stored
// unchanged.
func ProfileFor(class AssetClass) Profile {
	if p, ok := profiles[class]; ok {
		return p
	}
	return Profile{Fit: FitNone}
}

// ContentType returns the MIME type the profile encodes to.
func (p Profile) ContentType() string {
	if p.Format == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Ext returns the key extension (without dot) the profile encodes to.
func (p Profile) Ext() string {
	if p.Format == FormatPNG {
		return "png"
	}
	return "jpg"
}

// Ref is a rehosted asset: where it came from and where it now lives.
type Ref struct {
	SourceURL   string `json:"sourceUrl"`
	StoredKey   string `json:"storedKey"`
	PublicURL   string `json:"publicUrl"`
	ContentType string `json:"contentType"`
}

// ErrTranscode is returned when an image cannot be decoded or encoded.
var ErrTranscode = errors.New("transcode failed")
