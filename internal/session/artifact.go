package session

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFilenamePrefix is used when the caller does not configure one.
const DefaultFilenamePrefix = "recording"

// Artifact is the finalized recording output: the encoded bytes, their MIME
// type, and a suggested download filename.
type Artifact struct {
	Data     []byte `json:"-"`
	MIME     string `json:"mime"`
	Filename string `json:"filename"`
}

// Size returns the artifact size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// artifactFilename builds a suggested filename from the prefix, a UTC
// timestamp, and the extension native to the container MIME type.
func artifactFilename(prefix, mime string, ts time.Time) string {
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}
	return fmt.Sprintf("%s-%s.%s", prefix, ts.UTC().Format("20060102-150405"), extensionForMIME(mime))
}

// extensionForMIME maps a container MIME type to its native file extension.
func extensionForMIME(mime string) string {
	switch mime {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg", "application/ogg":
		return "ogg"
	case "audio/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	case "audio/mp4":
		return "m4a"
	case "audio/flac":
		return "flac"
	}

	if _, subtype, found := strings.Cut(mime, "/"); found && subtype != "" {
		return strings.TrimPrefix(subtype, "x-")
	}
	return "bin"
}
