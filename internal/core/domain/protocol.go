package domain

import "fmt"

// Protocol selects the wire format spoken with the service.
type Protocol string

const (
	// ProtocolCurrent is the JSON API: base64 photo in, CDN URLs out.
	ProtocolCurrent Protocol = "current"
	// ProtocolLegacy is the multipart API: file upload in, inline base64 out.
	ProtocolLegacy Protocol = "legacy"
)

// Default image ceilings per protocol.
const (
	MaxImageBytesCurrent = 5 << 20
	MaxImageBytesLegacy  = 9 << 20
)

// MaxImageBytes returns the default upload ceiling for p.
func (p Protocol) MaxImageBytes() int64 {
	if p == ProtocolLegacy {
		return MaxImageBytesLegacy
	}
	return MaxImageBytesCurrent
}

// ParseProtocol accepts "current"/"json" and "legacy"/"multipart".
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "", "current", "json":
		return ProtocolCurrent, nil
	case "legacy", "multipart":
		return ProtocolLegacy, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}
