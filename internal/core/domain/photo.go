package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// RequestID is the opaque identifier the service assigns on first submission.
// Carrying it on a later submission marks a new trial of the same photo.
type RequestID string

// Units of a custom document specification.
type Units string

const (
	UnitsImperial Units = "imperial"
	UnitsMetric   Units = "metric"
)

// PhotoSubmission is one request to process a photo. It is never mutated after
// construction; the tracker derives copies with With* helpers.
type PhotoSubmission struct {
	// Source is a file path read when Image is empty.
	Source string
	// Filename is the name sent with the upload. Defaults to the base of Source.
	Filename  string
	Image     []byte
	Spec      DocumentSpec
	RequestID RequestID
}

// WithRequestID returns a copy of the submission carrying id.
func (s PhotoSubmission) WithRequestID(id RequestID) PhotoSubmission {
	s.RequestID = id
	return s
}

// WithSpec returns a copy of the submission using spec.
func (s PhotoSubmission) WithSpec(spec DocumentSpec) PhotoSubmission {
	s.Spec = spec
	return s
}

// DocumentSpec selects the target document either by name or by explicit
// measurements. Exactly one branch must be set.
type DocumentSpec struct {
	Named  *DocumentRef
	Custom *CustomSpec
}

// IsZero reports whether neither branch is set.
func (d DocumentSpec) IsZero() bool {
	return d.Named == nil && d.Custom == nil
}

// NamedSpec builds a named document specification.
func NamedSpec(country, docType string) DocumentSpec {
	return DocumentSpec{Named: &DocumentRef{Country: country, Type: docType}}
}

// DocumentRef names a document by country and type, e.g. US passport.
type DocumentRef struct {
	Country string
	Type    string
}

// ID renders the identifier used by the JSON API ("us_passport").
func (r DocumentRef) ID() string {
	return strings.ToLower(strings.TrimSpace(r.Country)) + "_" + strings.ToLower(strings.TrimSpace(r.Type))
}

// Validate checks the reference is usable.
func (r DocumentRef) Validate() error {
	country := strings.TrimSpace(r.Country)
	if len(country) != 2 {
		return fmt.Errorf("country code must be two letters, got %q", r.Country)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("document type is required")
	}
	return nil
}

// ParseDocumentID parses "us_passport" or "US-passport" into a DocumentRef.
func ParseDocumentID(id string) (DocumentRef, error) {
	id = strings.TrimSpace(id)
	sep := strings.IndexAny(id, "_-")
	if sep <= 0 || sep == len(id)-1 {
		return DocumentRef{}, fmt.Errorf("invalid document id %q", id)
	}
	ref := DocumentRef{
		Country: strings.ToUpper(id[:sep]),
		Type:    strings.ToLower(id[sep+1:]),
	}
	if err := ref.Validate(); err != nil {
		return DocumentRef{}, fmt.Errorf("invalid document id %q: %w", id, err)
	}
	return ref, nil
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CustomSpec is an explicit document specification.
type CustomSpec struct {
	Width              float64
	Height             float64
	Units              Units
	HeadToHeightRatio  float64
	EyeDistanceFromTop float64
	BackgroundColor    string
	DPI                int
}

// DefaultCustomSpec returns a specification of the given size with the
// service's documented defaults for everything else.
func DefaultCustomSpec(width, height float64) CustomSpec {
	return CustomSpec{
		Width:              width,
		Height:             height,
		Units:              UnitsImperial,
		HeadToHeightRatio:  0.75,
		EyeDistanceFromTop: 0.5,
		BackgroundColor:    "#FFFFFF",
		DPI:                300,
	}
}

// Validate checks every field is within range.
func (c CustomSpec) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("width and height must be positive")
	case c.Units != UnitsImperial && c.Units != UnitsMetric:
		return fmt.Errorf("units must be %q or %q, got %q", UnitsImperial, UnitsMetric, c.Units)
	case c.HeadToHeightRatio <= 0 || c.HeadToHeightRatio > 1:
		return fmt.Errorf("head_to_height_ratio must be in (0, 1]")
	case c.EyeDistanceFromTop <= 0 || c.EyeDistanceFromTop > 1:
		return fmt.Errorf("eye_distance_from_top must be in (0, 1]")
	case !hexColor.MatchString(c.BackgroundColor):
		return fmt.Errorf("background_color must be #RRGGBB, got %q", c.BackgroundColor)
	case c.DPI <= 0:
		return fmt.Errorf("dpi must be positive")
	}
	return nil
}
