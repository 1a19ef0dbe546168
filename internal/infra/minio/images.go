package minio

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	"inkwell/internal/domain/apperr"
	"inkwell/internal/domain/post"
)

// UploadURL validates the declared image and returns a presigned PUT URL
// under posts/<postID>/.
func (s *ImageStore) UploadURL(ctx context.Context, postID post.ID, contentType string, contentLength int64) (*post.ImageUpload, error) {
	if contentLength <= 0 || contentLength > s.cfg.MaxImageBytes {
		return nil, fmt.Errorf("%w: image size must be between 1 and %d bytes", apperr.ErrValidation, s.cfg.MaxImageBytes)
	}
	if !slices.Contains(s.cfg.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%w: content type %q is not allowed", apperr.ErrValidation, contentType)
	}

	key := post.ImageKey(postID, uuid.NewString(), contentType)
	u, err := s.client.PresignedPutObject(ctx, s.cfg.Bucket, key, s.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w: %w", key, apperr.ErrTransient, err)
	}

	return &post.ImageUpload{
		UploadURL: u.String(),
		Key:       key,
		Expires:   s.cfg.PresignTTL,
		Headers: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.FormatInt(contentLength, 10),
		},
	}, nil
}

// ConfirmUpload checks that key was uploaded for the post within limits and
// returns the URL to store on the post.
func (s *ImageStore) ConfirmUpload(ctx context.Context, postID post.ID, key string) (string, error) {
	if !post.OwnsImageKey(postID, key) {
		return "", fmt.Errorf("%w: image key does not belong to post", apperr.ErrValidation)
	}

	info, err := s.client.StatObject(ctx, s.cfg.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		resp := mclient.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("image %s: %w", key, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w: %w", key, apperr.ErrTransient, err)
	}

	if info.Size <= 0 || info.Size > s.cfg.MaxImageBytes {
		return "", fmt.Errorf("%w: uploaded image has invalid size", apperr.ErrValidation)
	}
	if ct := info.ContentType; ct != "" && !slices.Contains(s.cfg.AllowedContentTypes, ct) {
		return "", fmt.Errorf("%w: uploaded image has invalid content type", apperr.ErrValidation)
	}

	if s.cfg.PublicBaseURL == "" {
		return key, nil
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}
