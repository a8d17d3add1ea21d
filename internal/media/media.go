// Package media stores check-in photos and returns the URL the face
// verifier later fetches.
package media

import (
	"context"
	"strings"
)

// Uploader stores an image given as a data URI or raw base64 string.
type Uploader interface {
	Upload(ctx context.Context, image string) (string, error)
}

// DataURI prefixes raw base64 JPEG data so hosting APIs accept it. Values
// that are already data URIs are returned unchanged.
func DataURI(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:image/jpeg;base64," + image
}
