// Package source loads the images shown by the carousel from local files,
// directories, HTTP(S) URLs and S3 buckets, and watches local sources for
// changes.
package source

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Image is one decoded image together with where it came from.
type Image struct {
	Name  string
	Ref   string
	Image image.Image
}

// imageExts are the extensions picked up when listing directories and
// buckets.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// IsImagePath reports whether name has an image file extension.
func IsImagePath(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Decode decodes base64-encoded or raw image data.
func Decode(data []byte) (image.Image, error) {
	raw := data
	if decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data))); err == nil {
		raw = decoded
	}

	if len(raw) == 0 {
		return nil, errors.New("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	return img, nil
}
