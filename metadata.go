package photoverify

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/bep/imagemeta"
)

// Authenticity signal values.
const (
	authPresent = 0.6 // capture timestamp found
	authUnknown = 0.6 // metadata unreadable or absent: neutral
	authMissing = 0.2 // EXIF readable, timestamp confirmed absent
)

// TimestampState is the tri-state outcome of the capture-timestamp check.
type TimestampState int

const (
	TimestampUnknown TimestampState = iota // unreadable, corrupt or no EXIF at all
	TimestampPresent                       // EXIF carries a capture timestamp
	TimestampMissing                       // EXIF readable, no timestamp
)

func (s TimestampState) String() string {
	switch s {
	case TimestampPresent:
		return "present"
	case TimestampMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Bool maps the state to the wire tri-state: true, false or nil.
func (s TimestampState) Bool() *bool {
	var v bool
	switch s {
	case TimestampPresent:
		v = true
	case TimestampMissing:
		v = false
	default:
		return nil
	}
	return &v
}

// AuthScore is the authenticity signal for the state. Only a confirmed
// missing timestamp is penalized.
func (s TimestampState) AuthScore() float64 {
	switch s {
	case TimestampPresent:
		return authPresent
	case TimestampMissing:
		return authMissing
	default:
		return authUnknown
	}
}

func (s TimestampState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TimestampState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "present":
		*s = TimestampPresent
	case "missing":
		*s = TimestampMissing
	default:
		*s = TimestampUnknown
	}
	return nil
}

// GeoPoint is a WGS84 coordinate read from EXIF GPS tags.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// PhotoMetadata is the subset of EXIF the verifier uses.
type PhotoMetadata struct {
	Timestamp TimestampState
	Taken     string    // raw DateTimeOriginal / DateTime value
	Location  *GeoPoint // nil when the image has no GPS fix
}

// timestampTags are checked in order. The IFD0 date (0x0132) is the fallback;
// imagemeta may report it under its exiftool name ModifyDate.
var timestampTags = []string{"DateTimeOriginal", "DateTime", "ModifyDate"}

// metaFormats maps image.Decode format names to imagemeta formats.
var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
	"tiff": imagemeta.TIFF,
}

// ReadPhotoMetadata parses EXIF from raw image bytes. format is the
// image.Decode format name. It never returns an error: anything unreadable
// maps to TimestampUnknown.
func ReadPhotoMetadata(data []byte, format string) PhotoMetadata {
	var pm PhotoMetadata
	if len(data) == 0 {
		return pm
	}
	imf, ok := metaFormats[format]
	if !ok {
		return pm
	}

	var tags imagemeta.Tags
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imf,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			tags.Add(ti)
			return nil
		},
	})
	if err != nil {
		return pm
	}

	exif := tags.EXIF()
	if len(exif) == 0 {
		return pm
	}

	pm.Timestamp = TimestampMissing
	for _, name := range timestampTags {
		if ti, ok := exif[name]; ok {
			if s := strings.TrimSpace(tagValueString(ti.Value)); s != "" {
				pm.Timestamp = TimestampPresent
				pm.Taken = s
				break
			}
		}
	}

	if lat, lon, err := tags.GetLatLong(); err == nil && (lat != 0 || lon != 0) {
		pm.Location = &GeoPoint{Lat: lat, Lon: lon}
	}
	return pm
}

// tagValueString extracts a string from a tag value.
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
		return ""
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
