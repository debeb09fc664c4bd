// Package attachments stores task attachment blobs outside the database.
package attachments

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/monocle-dev/taskhub/internal/types"
)

// ResourceRaw is the resource type used for markdown attachments.
const ResourceRaw = "raw"

// File is one uploaded part waiting to be stored.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type Uploaded struct {
	URL string
}

// Storage is the binary store task attachments live in.
type Storage interface {
	Upload(ctx context.Context, file File) (Uploaded, error)
	Delete(ctx context.Context, url, resourceType string) error
}

// IsMarkdown reports whether a declared content type is an accepted
// markdown variant. Parameters such as charset are ignored.
func IsMarkdown(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range types.AllowedAttachmentTypes {
		if strings.EqualFold(mediaType, allowed) {
			return true
		}
	}
	return false
}

func objectName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".md"
	}
	return uuid.NewString() + ext
}
