package api

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"gwi.com/assistant-console/internal/utils"
)

// MaxProfilePictureSize is the upload cap for profile pictures.
const MaxProfilePictureSize = 5 * 1024 * 1024

// PictureUploader stores a profile picture and returns a URL that can be
// dereferenced to display it.
type PictureUploader interface {
	UploadProfilePicture(ctx context.Context, file io.Reader, userID string) (string, error)
}

type pictureCache interface {
	SaveProfilePicture(userID, pictureURL string) error
}

// LocalPictureStore keeps pictures as data URLs in the local cache. The
// backend has no upload endpoint yet; a remote uploader can replace this
// without changing callers.
type LocalPictureStore struct {
	cache pictureCache
}

func NewLocalPictureStore(cache pictureCache) *LocalPictureStore {
	return &LocalPictureStore{cache: cache}
}

func (l *LocalPictureStore) UploadProfilePicture(ctx context.Context, file io.Reader, userID string) (string, error) {
	if userID == "" {
		return "", &ValidationError{Field: "userID", Message: "Not authenticated"}
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxProfilePictureSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxProfilePictureSize {
		return "", &ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("File size exceeds 5MB limit (more than %s)", humanize.IBytes(MaxProfilePictureSize)),
		}
	}
	if len(data) == 0 {
		return "", &ValidationError{Field: "file", Message: "File is empty"}
	}
	dataURL, mediaType := utils.EncodeDataURL(data)
	if !utils.IsImageMediaType(mediaType) {
		return "", &ValidationError{Field: "file", Message: fmt.Sprintf("File must be an image, got %s", mediaType)}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := l.cache.SaveProfilePicture(userID, dataURL); err != nil {
		return "", err
	}
	return dataURL, nil
}
