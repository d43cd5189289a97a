package encoder

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

var extensions = map[string]string{
	".jpg":  mimeJPEG,
	".jpeg": mimeJPEG,
	".png":  mimePNG,
}

// checkFormat accepts JPEG and PNG only. The extension, when there is a
// name, and the sniffed content must both be one of them.
func checkFormat(name string, data []byte) (string, error) {
	if name != "" {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := extensions[ext]; !ok {
			return "", invalid(domain.CodeInvalidImageFormat,
				fmt.Sprintf("unsupported file extension %q, expected .jpg, .jpeg or .png", ext))
		}
	}

	sniffed := http.DetectContentType(data)
	if sniffed != mimeJPEG && sniffed != mimePNG {
		return "", invalid(domain.CodeInvalidImageFormat,
			fmt.Sprintf("unsupported content type %s, expected JPEG or PNG", sniffed))
	}
	return sniffed, nil
}

func extensionFor(mime string) string {
	if mime == mimePNG {
		return ".png"
	}
	return ".jpg"
}
