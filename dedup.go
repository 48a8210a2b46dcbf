package photoverify

import (
	"fmt"
	"image"
	"strconv"

	"github.com/corona10/goimagehash"
)

// pHashHexLen is the length of a serialized 64-bit perceptual hash.
const pHashHexLen = 16

// HistoryEntry is one recent submission supplied by the caller.
type HistoryEntry struct {
	ID    string `json:"id" yaml:"id"`
	PHash string `json:"phash" yaml:"phash"`
}

// PerceptualHash computes the 64-bit DCT perceptual hash of img.
func PerceptualHash(img image.Image) (*goimagehash.ImageHash, error) {
	return goimagehash.PerceptionHash(img)
}

// FormatHash serializes a hash as 16 lowercase hex digits.
func FormatHash(h *goimagehash.ImageHash) string {
	return fmt.Sprintf("%0*x", pHashHexLen, h.GetHash())
}

// ParseHash parses a 16-digit hex perceptual hash.
func ParseHash(s string) (*goimagehash.ImageHash, error) {
	if len(s) != pHashHexLen {
		return nil, fmt.Errorf("phash %q: want %d hex digits", s, pHashHexLen)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("phash %q: %w", s, err)
	}
	return goimagehash.NewImageHash(v, goimagehash.PHash), nil
}

// duplicateMatch is the history entry reported as duplicate_of.
type duplicateMatch struct {
	ID       string
	Distance int
}

// findDuplicate scans history in the order supplied. With DuplicateFirstMatch
// the first candidate within maxDistance wins, even if a later one is closer.
// Malformed candidate hashes are skipped.
func findDuplicate(hash *goimagehash.ImageHash, history []HistoryEntry, maxDistance int, policy DuplicatePolicy) *duplicateMatch {
	var best *duplicateMatch
	for _, h := range history {
		if h.PHash == "" {
			continue
		}
		other, err := ParseHash(h.PHash)
		if err != nil {
			continue
		}
		dist, err := hash.Distance(other)
		if err != nil || dist > maxDistance {
			continue
		}
		if policy == DuplicateFirstMatch {
			return &duplicateMatch{ID: h.ID, Distance: dist}
		}
		if best == nil || dist < best.Distance {
			best = &duplicateMatch{ID: h.ID, Distance: dist}
		}
	}
	return best
}

// HashFile decodes the image at path and returns its serialized perceptual hash.
func HashFile(path string) (string, error) {
	li, err := loadImage(path)
	if err != nil {
		return "", err
	}
	h, err := PerceptualHash(li.img)
	if err != nil {
		return "", fmt.Errorf("%w: %s: phash: %v", ErrImageCorrupt, path, err)
	}
	return FormatHash(h), nil
}
