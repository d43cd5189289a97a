package cli

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// specFlags collects the document specification shared by submit and batch.
type specFlags struct {
	documentID string
	country    string
	docType    string

	width      float64
	height     float64
	units      string
	headRatio  float64
	eyeTop     float64
	background string
	dpi        int
}

func (f *specFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.documentID, "document-id", "", "document id, e.g. us_passport")
	fs.StringVar(&f.country, "country", "", "two-letter country code (with --type)")
	fs.StringVar(&f.docType, "type", "", "document type, e.g. passport or visa (with --country)")

	defaults := domain.DefaultCustomSpec(0, 0)
	fs.Float64Var(&f.width, "width", 0, "custom photo width (enables a custom specification)")
	fs.Float64Var(&f.height, "height", 0, "custom photo height")
	fs.StringVar(&f.units, "units", string(defaults.Units), "custom units: imperial or metric")
	fs.Float64Var(&f.headRatio, "head-ratio", defaults.HeadToHeightRatio, "custom head to height ratio")
	fs.Float64Var(&f.eyeTop, "eye-distance", defaults.EyeDistanceFromTop, "custom eye distance from top, as a ratio")
	fs.StringVar(&f.background, "background", defaults.BackgroundColor, "custom background color #RRGGBB")
	fs.IntVar(&f.dpi, "dpi", defaults.DPI, "custom resolution")
}

// spec returns the specification the flags describe. ok is false when no
// specification flag was given.
func (f *specFlags) spec() (spec domain.DocumentSpec, ok bool, err error) {
	named := f.documentID != "" || f.country != "" || f.docType != ""
	custom := f.width != 0 || f.height != 0

	switch {
	case named && custom:
		return spec, false, errors.New("use either a named document or --width/--height, not both")
	case f.documentID != "" && (f.country != "" || f.docType != ""):
		return spec, false, errors.New("--document-id cannot be combined with --country/--type")
	case f.documentID != "":
		ref, err := domain.ParseDocumentID(f.documentID)
		if err != nil {
			return spec, false, err
		}
		return domain.DocumentSpec{Named: &ref}, true, nil
	case named:
		return domain.NamedSpec(strings.ToUpper(f.country), f.docType), true, nil
	case custom:
		c := domain.CustomSpec{
			Width:              f.width,
			Height:             f.height,
			Units:              domain.Units(f.units),
			HeadToHeightRatio:  f.headRatio,
			EyeDistanceFromTop: f.eyeTop,
			BackgroundColor:    f.background,
			DPI:                f.dpi,
		}
		return domain.DocumentSpec{Custom: &c}, true, nil
	}
	return spec, false, nil
}
