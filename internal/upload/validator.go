package upload

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Decoders available to the image integrity check.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps width*height of an uploaded image (about 89.5 megapixels).
const DefaultMaxPixels = 1024 * 1024 * 1024 / 4 / 3

// Validator enforces the content rules for uploaded images.
type Validator struct {
	maxSize    int64
	maxPixels  int64
	extensions map[string]struct{}
	typeReason string
	sizeReason string
}

// NewValidator builds a Validator for the given byte and pixel ceilings and extension allow-list.
// Extensions are compared case-insensitively and without the leading dot.
// A non-positive maxPixels selects DefaultMaxPixels.
func NewValidator(maxSize, maxPixels int64, extensions []string) *Validator {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	set := make(map[string]struct{}, len(extensions))
	names := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, dup := set[ext]; dup {
			continue
		}
		set[ext] = struct{}{}
		names = append(names, strings.ToUpper(ext))
	}

	return &Validator{
		maxSize:    maxSize,
		maxPixels:  maxPixels,
		extensions: set,
		typeReason: fmt.Sprintf("Invalid file type. Only %s images are allowed.", strings.Join(names, ", ")),
		sizeReason: sizeLimitReason(maxSize),
	}
}

// MaxSize is the configured ceiling in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate returns nil when the upload is acceptable and a *ValidationError otherwise.
// The size ceiling is checked before decoding so oversized payloads are never decoded,
// and the header dimensions are checked against the pixel ceiling before pixels are allocated.
func (v *Validator) Validate(contentType, filename string, data []byte) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return &ValidationError{Reason: v.typeReason}
	}
	if _, ok := v.extensions[Extension(filename)]; !ok {
		return &ValidationError{Reason: v.typeReason}
	}
	if len(data) == 0 {
		return &ValidationError{Reason: "File is empty"}
	}
	if int64(len(data)) > v.maxSize {
		return &ValidationError{Reason: v.sizeReason}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return &ValidationError{Reason: "Invalid image file"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > v.maxPixels {
		return &ValidationError{Reason: "Invalid image file"}
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return &ValidationError{Reason: "Invalid image file"}
	}
	return nil
}

// Extension returns the lower-cased suffix after the last dot, or "" when there is none.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func sizeLimitReason(maxSize int64) string {
	return fmt.Sprintf("File size exceeds maximum limit of %.1fMB", float64(maxSize)/(1024*1024))
}
