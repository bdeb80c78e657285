package reddit

import (
	"context"
	"errors"
	"os"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

// uploadMediaFile checks that path names a readable regular file and
// hands it to the configured uploader. The upload protocol itself is a
// black box; only the local file handling is this client's concern.
func (s *Session) uploadMediaFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &pkgerrs.FileOperationError{Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &pkgerrs.FileOperationError{Path: path, Err: errors.New("path is a directory, not a media file")}
	}
	if s.uploadMedia == nil {
		return "", &pkgerrs.FileOperationError{Path: path, Err: errors.New("no media uploader configured")}
	}

	url, err := s.uploadMedia(ctx, path)
	if err != nil {
		return "", &pkgerrs.FileOperationError{Path: path, Err: err}
	}
	return url, nil
}
