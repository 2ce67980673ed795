package transcription

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxMediaBytes is the advisory upload cap. The acquisition service itself never checks it.
const MaxMediaBytes = 20 << 20

// mediaTypes is the allow-list of accepted audio containers keyed by lowercase extension.
var mediaTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

// Payload is transport-ready media content.
type Payload struct {
	Data     []byte
	MIMEType string
	Filename string
}

func (p Payload) Size() int {
	return len(p.Data)
}

// SizeMB is the payload size in mebibytes.
func (p Payload) SizeMB() float64 {
	return float64(len(p.Data)) / (1 << 20)
}

// MediaTypeFor returns the MIME type for an accepted file name.
func MediaTypeFor(name string) (string, bool) {
	mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]
	return mt, ok
}

// NormalizeMedia reads r fully and returns a Payload for the named file.
// Unknown extensions, empty content and content above MaxMediaBytes are rejected.
func NormalizeMedia(name string, r io.Reader) (Payload, error) {
	mt, ok := MediaTypeFor(name)
	if !ok {
		return Payload{}, unsupportedType(name)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxMediaBytes+1))
	if err != nil {
		return Payload{}, fmt.Errorf("read media: %w", err)
	}
	if len(data) == 0 {
		return Payload{}, &InputError{Reason: "file is empty"}
	}
	if len(data) > MaxMediaBytes {
		return Payload{}, &InputError{Reason: fmt.Sprintf("file exceeds %d MB", MaxMediaBytes>>20)}
	}
	return Payload{
		Data:     data,
		MIMEType: mt,
		Filename: filepath.Base(name),
	}, nil
}

// LoadMediaFile is NormalizeMedia over a file on disk.
func LoadMediaFile(path string) (Payload, error) {
	if _, ok := MediaTypeFor(path); !ok {
		return Payload{}, unsupportedType(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()
	return NormalizeMedia(path, f)
}

func unsupportedType(name string) error {
	return &InputError{Reason: fmt.Sprintf("unsupported file type %q (use .mp3, .wav or .m4a)", filepath.Ext(name))}
}
