package post

import (
	"path"
	"strings"
	"time"
)

// ImageUpload describes a presigned upload issued for a post image.
type ImageUpload struct {
	UploadURL string            `json:"upload_url"`
	Key       string            `json:"key"`
	Expires   time.Duration     `json:"expires"`
	Headers   map[string]string `json:"required_headers"`
}

// ImageKeyPrefix is the object key prefix every image of the post lives under.
func ImageKeyPrefix(id ID) string {
	return "posts/" + id.String() + "/"
}

// ImageKey builds an object key for a new image of the post.
func ImageKey(id ID, name, contentType string) string {
	return path.Join("posts", id.String(), name+imageExt(contentType))
}

// OwnsImageKey reports whether key belongs to the post.
func OwnsImageKey(id ID, key string) bool {
	return strings.HasPrefix(key, ImageKeyPrefix(id)) && !strings.Contains(key, "..")
}

func imageExt(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
