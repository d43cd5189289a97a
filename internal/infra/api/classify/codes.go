package classify

import (
	"strings"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

var clientCodes = map[string]string{
	"invalid_document_id":    domain.CodeInvalidDocumentID,
	"invalid_document":       domain.CodeInvalidDocumentID,
	"unknown_document":       domain.CodeInvalidDocumentID,
	"document_not_found":     domain.CodeInvalidDocumentID,
	"invalid_country_code":   domain.CodeInvalidDocumentID,
	"invalid_image_format":   domain.CodeInvalidImageFormat,
	"invalid_format":         domain.CodeInvalidImageFormat,
	"unsupported_format":     domain.CodeInvalidImageFormat,
	"image_too_large":        domain.CodeImageTooLarge,
	"file_too_large":         domain.CodeImageTooLarge,
	"payload_too_large":      domain.CodeImageTooLarge,
	"missing_field":          domain.CodeMissingField,
	"missing_parameter":      domain.CodeMissingField,
	"missing_required_field": domain.CodeMissingField,
	"face_detection_failed":  domain.CodeFaceDetectionFailed,
	"no_face_detected":       domain.CodeFaceDetectionFailed,
	"face_not_detected":      domain.CodeFaceDetectionFailed,
	"multiple_faces":         domain.CodeFaceDetectionFailed,
	"malformed_request":      domain.CodeMalformedRequest,
	"bad_request":            domain.CodeMalformedRequest,
}

// keyword fallbacks for bodies that only carry a message, checked in order.
var messageHints = []struct {
	keyword string
	code    string
}{
	{"face", domain.CodeFaceDetectionFailed},
	{"too large", domain.CodeImageTooLarge},
	{"size", domain.CodeImageTooLarge},
	{"format", domain.CodeInvalidImageFormat},
	{"document", domain.CodeInvalidDocumentID},
	{"country", domain.CodeInvalidDocumentID},
	{"required", domain.CodeMissingField},
	{"missing", domain.CodeMissingField},
}

// clientCode normalizes a 400 response into the enumerated client codes.
func clientCode(code, message string) string {
	if code != "" {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", "_"))
		if c, ok := clientCodes[key]; ok {
			return c
		}
		return domain.CodeMalformedRequest
	}

	msg := strings.ToLower(message)
	for _, h := range messageHints {
		if strings.Contains(msg, h.keyword) {
			return h.code
		}
	}
	return domain.CodeMalformedRequest
}
