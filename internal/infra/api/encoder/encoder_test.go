package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0}
)

func fakeImage(magic []byte, size int) []byte {
	data := make([]byte, size)
	copy(data, magic)
	return data
}

func usPassport() domain.DocumentSpec {
	return domain.NamedSpec("US", "passport")
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *domain.ValidationError, got %T (%v)", err, err)
	}
	if vErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, vErr.Code, vErr.Message)
	}
}

func TestEncode_SizeCeiling(t *testing.T) {
	enc := New(Config{Protocol: domain.ProtocolCurrent})
	if enc.MaxImageBytes() != 5<<20 {
		t.Fatalf("expected 5 MiB default ceiling, got %d", enc.MaxImageBytes())
	}

	// 6 MB JPEG is rejected.
	_, err := enc.Encode(domain.PhotoSubmission{
		Filename: "big.jpg",
		Image:    fakeImage(jpegMagic, 6<<20),
		Spec:     usPassport(),
	})
	requireCode(t, err, domain.CodeImageTooLarge)
	if msg := err.Error(); !strings.Contains(msg, "6.0 MiB") || !strings.Contains(msg, "5.0 MiB") {
		t.Errorf("expected human readable sizes, got %q", msg)
	}

	// 4 MB PNG is accepted.
	payload, err := enc.Encode(domain.PhotoSubmission{
		Filename: "ok.png",
		Image:    fakeImage(pngMagic, 4<<20),
		Spec:     usPassport(),
	})
	if err != nil {
		t.Fatalf("expected 4 MB PNG to be accepted, got %v", err)
	}
	if payload.ContentType != "application/json" {
		t.Errorf("expected JSON payload, got %s", payload.ContentType)
	}
}

func TestEncode_LegacyCeiling(t *testing.T) {
	enc := New(Config{Protocol: domain.ProtocolLegacy})
	if _, err := enc.Encode(domain.PhotoSubmission{
		Filename: "photo.jpg",
		Image:    fakeImage(jpegMagic, 6<<20),
		Spec:     usPassport(),
	}); err != nil {
		t.Fatalf("expected 6 MB to fit the 9 MB legacy ceiling, got %v", err)
	}

	custom := New(Config{Protocol: domain.ProtocolLegacy, MaxImageBytes: 1024})
	_, err := custom.Encode(domain.PhotoSubmission{
		Filename: "photo.jpg",
		Image:    fakeImage(jpegMagic, 2048),
		Spec:     usPassport(),
	})
	requireCode(t, err, domain.CodeImageTooLarge)
}

func TestEncode_Format(t *testing.T) {
	enc := New(Config{})

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"bad extension", "photo.gif", fakeImage(jpegMagic, 64)},
		{"text content", "photo.jpg", []byte("definitely not an image")},
		{"gif content without name", "", []byte("GIF89a......")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(domain.PhotoSubmission{
				Filename: tt.filename,
				Image:    tt.data,
				Spec:     usPassport(),
			})
			requireCode(t, err, domain.CodeInvalidImageFormat)
		})
	}
}

func TestEncode_SpecBranches(t *testing.T) {
	enc := New(Config{})
	custom := domain.DefaultCustomSpec(2, 2)
	image := fakeImage(jpegMagic, 64)

	tests := []struct {
		name string
		spec domain.DocumentSpec
		code string
	}{
		{"neither", domain.DocumentSpec{}, domain.CodeMissingField},
		{"both", domain.DocumentSpec{Named: &domain.DocumentRef{Country: "US", Type: "passport"}, Custom: &custom}, domain.CodeMalformedRequest},
		{"bad country", domain.NamedSpec("USA", "passport"), domain.CodeInvalidDocumentID},
		{"bad custom", domain.DocumentSpec{Custom: &domain.CustomSpec{Width: 2, Height: 2, Units: "cubits"}}, domain.CodeMalformedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(domain.PhotoSubmission{Filename: "a.jpg", Image: image, Spec: tt.spec})
			requireCode(t, err, tt.code)
		})
	}
}

func TestEncode_ReadsSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "me.png")
	if err := os.WriteFile(path, fakeImage(pngMagic, 128), 0o600); err != nil {
		t.Fatal(err)
	}

	enc := New(Config{})
	if _, err := enc.Encode(domain.PhotoSubmission{Source: path, Spec: usPassport()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := enc.Encode(domain.PhotoSubmission{Source: filepath.Join(dir, "missing.png"), Spec: usPassport()})
	requireCode(t, err, domain.CodeFileUnreadable)

	_, err = enc.Encode(domain.PhotoSubmission{Spec: usPassport()})
	requireCode(t, err, domain.CodeMissingField)
}

func TestEncode_JSONBody(t *testing.T) {
	image := fakeImage(jpegMagic, 32)
	payload, err := New(Config{}).Encode(domain.PhotoSubmission{
		Filename:  "a.jpg",
		Image:     image,
		Spec:      usPassport(),
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	var body map[string]any
	if err := json.Unmarshal(payload.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["document_id"] != "us_passport" {
		t.Errorf("expected document_id us_passport, got %v", body["document_id"])
	}
	if body["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", body["request_id"])
	}
	if body["photo"] != base64.StdEncoding.EncodeToString(image) {
		t.Errorf("photo is not the base64 image")
	}
	if _, ok := body["width"]; ok {
		t.Errorf("named spec must not send custom fields")
	}
}

func TestEncode_MultipartBody(t *testing.T) {
	image := fakeImage(pngMagic, 32)
	custom := domain.DefaultCustomSpec(2, 2)
	payload, err := New(Config{Protocol: domain.ProtocolLegacy}).Encode(domain.PhotoSubmission{
		Filename:  "visa.png",
		Image:     image,
		Spec:      domain.DocumentSpec{Custom: &custom},
		RequestID: "req-9",
	})
	if err != nil {
		t.Fatal(err)
	}

	mediaType, params, err := mime.ParseMediaType(payload.ContentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("expected multipart content type, got %s", payload.ContentType)
	}

	reader := multipart.NewReader(bytes.NewReader(payload.Body), params["boundary"])
	fields := map[string]string{}
	var photo []byte
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(part)
		if part.FormName() == "input_photo" {
			photo = data
			if part.FileName() != "visa.png" {
				t.Errorf("unexpected filename %s", part.FileName())
			}
			continue
		}
		fields[part.FormName()] = string(data)
	}

	if !bytes.Equal(photo, image) {
		t.Errorf("photo part does not match image")
	}
	want := map[string]string{
		"width":                 "2",
		"height":                "2",
		"units":                 "imperial",
		"head_to_height_ratio":  "0.75",
		"eye_distance_from_top": "0.5",
		"background_color":      "#FFFFFF",
		"dpi":                   "300",
		"request_id":            "req-9",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, fields[k])
		}
	}
	if _, ok := fields["country_code"]; ok {
		t.Errorf("custom spec must not send country_code")
	}
}
