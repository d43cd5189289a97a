// Package encoder turns a PhotoSubmission into a request body, rejecting
// submissions the service would refuse before anything is sent.
package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// Config selects the wire variant and the active size ceiling.
type Config struct {
	Protocol domain.Protocol
	// MaxImageBytes is the upload ceiling. Zero uses the protocol default.
	MaxImageBytes int64
}

// Payload is an encoded request body.
type Payload struct {
	ContentType string
	Body        []byte
}

// Encoder validates and encodes submissions.
type Encoder struct {
	protocol domain.Protocol
	maxBytes int64
}

// New creates an encoder.
func New(cfg Config) *Encoder {
	p := cfg.Protocol
	if p == "" {
		p = domain.ProtocolCurrent
	}
	limit := cfg.MaxImageBytes
	if limit <= 0 {
		limit = p.MaxImageBytes()
	}
	return &Encoder{protocol: p, maxBytes: limit}
}

// Protocol returns the active wire variant.
func (e *Encoder) Protocol() domain.Protocol {
	return e.protocol
}

// MaxImageBytes returns the active ceiling.
func (e *Encoder) MaxImageBytes() int64 {
	return e.maxBytes
}

// Encode validates sub and builds the body. Validation failures are returned
// as *domain.ValidationError.
func (e *Encoder) Encode(sub domain.PhotoSubmission) (*Payload, error) {
	image, name, err := e.load(sub)
	if err != nil {
		return nil, err
	}
	mime, err := checkFormat(name, image)
	if err != nil {
		return nil, err
	}
	if err := checkSpec(sub.Spec); err != nil {
		return nil, err
	}

	if e.protocol == domain.ProtocolLegacy {
		return encodeMultipart(sub, image, name, mime)
	}
	return encodeJSON(sub, image)
}

func (e *Encoder) load(sub domain.PhotoSubmission) ([]byte, string, error) {
	name := sub.Filename
	if name == "" && sub.Source != "" {
		name = filepath.Base(sub.Source)
	}

	if len(sub.Image) > 0 {
		if int64(len(sub.Image)) > e.maxBytes {
			return nil, "", tooLarge(int64(len(sub.Image)), e.maxBytes)
		}
		return sub.Image, name, nil
	}
	if sub.Source == "" {
		return nil, "", invalid(domain.CodeMissingField, "photo is required")
	}

	info, err := os.Stat(sub.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", invalid(domain.CodeFileUnreadable, fmt.Sprintf("photo %s does not exist", sub.Source))
		}
		return nil, "", invalid(domain.CodeFileUnreadable, err.Error())
	}
	if info.IsDir() {
		return nil, "", invalid(domain.CodeFileUnreadable, fmt.Sprintf("photo %s is a directory", sub.Source))
	}
	if info.Size() > e.maxBytes {
		return nil, "", tooLarge(info.Size(), e.maxBytes)
	}

	data, err := os.ReadFile(sub.Source)
	if err != nil {
		return nil, "", invalid(domain.CodeFileUnreadable, err.Error())
	}
	if len(data) == 0 {
		return nil, "", invalid(domain.CodeFileUnreadable, fmt.Sprintf("photo %s is empty", sub.Source))
	}
	if int64(len(data)) > e.maxBytes {
		return nil, "", tooLarge(int64(len(data)), e.maxBytes)
	}
	return data, name, nil
}

func checkSpec(spec domain.DocumentSpec) error {
	switch {
	case spec.Named != nil && spec.Custom != nil:
		return invalid(domain.CodeMalformedRequest, "document id and custom specification are mutually exclusive")
	case spec.IsZero():
		return invalid(domain.CodeMissingField, "either a document id or a custom specification is required")
	case spec.Named != nil:
		if err := spec.Named.Validate(); err != nil {
			return invalid(domain.CodeInvalidDocumentID, err.Error())
		}
	default:
		if err := spec.Custom.Validate(); err != nil {
			return invalid(domain.CodeMalformedRequest, err.Error())
		}
	}
	return nil
}

type jsonRequest struct {
	Photo              string   `json:"photo"`
	DocumentID         string   `json:"document_id,omitempty"`
	RequestID          string   `json:"request_id,omitempty"`
	Width              *float64 `json:"width,omitempty"`
	Height             *float64 `json:"height,omitempty"`
	Units              string   `json:"units,omitempty"`
	HeadToHeightRatio  *float64 `json:"head_to_height_ratio,omitempty"`
	EyeDistanceFromTop *float64 `json:"eye_distance_from_top,omitempty"`
	BackgroundColor    string   `json:"background_color,omitempty"`
	DPI                int      `json:"dpi,omitempty"`
}

func encodeJSON(sub domain.PhotoSubmission, image []byte) (*Payload, error) {
	req := jsonRequest{
		Photo:     base64.StdEncoding.EncodeToString(image),
		RequestID: string(sub.RequestID),
	}
	if n := sub.Spec.Named; n != nil {
		req.DocumentID = n.ID()
	} else {
		c := *sub.Spec.Custom
		req.Width = &c.Width
		req.Height = &c.Height
		req.Units = string(c.Units)
		req.HeadToHeightRatio = &c.HeadToHeightRatio
		req.EyeDistanceFromTop = &c.EyeDistanceFromTop
		req.BackgroundColor = c.BackgroundColor
		req.DPI = c.DPI
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return &Payload{ContentType: "application/json", Body: body}, nil
}

func encodeMultipart(sub domain.PhotoSubmission, image []byte, name, mime string) (*Payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if name == "" {
		name = "photo" + extensionFor(mime)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input_photo"; filename=%q`, name))
	header.Set("Content-Type", mime)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write photo part: %w", err)
	}

	fields := make([][2]string, 0, 8)
	if n := sub.Spec.Named; n != nil {
		fields = append(fields,
			[2]string{"country_code", n.Country},
			[2]string{"document_type", n.Type},
		)
	} else {
		c := sub.Spec.Custom
		fields = append(fields,
			[2]string{"width", formatFloat(c.Width)},
			[2]string{"height", formatFloat(c.Height)},
			[2]string{"units", string(c.Units)},
			[2]string{"head_to_height_ratio", formatFloat(c.HeadToHeightRatio)},
			[2]string{"eye_distance_from_top", formatFloat(c.EyeDistanceFromTop)},
			[2]string{"background_color", c.BackgroundColor},
			[2]string{"dpi", strconv.Itoa(c.DPI)},
		)
	}
	if sub.RequestID != "" {
		fields = append(fields, [2]string{"request_id", string(sub.RequestID)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return &Payload{ContentType: w.FormDataContentType(), Body: buf.Bytes()}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func invalid(code, msg string) *domain.ValidationError {
	return &domain.ValidationError{Code: code, Message: msg}
}

func tooLarge(size, limit int64) *domain.ValidationError {
	return invalid(domain.CodeImageTooLarge, fmt.Sprintf("photo is %s, limit is %s",
		humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit))))
}
