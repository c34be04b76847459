package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/config"
)

// Kind classifies an uploaded blob by its sniffed content type.
type Kind int

const (
	KindFile Kind = iota
	KindImage
)

// Uploader stores an uploaded blob and returns its public URL.
type Uploader interface {
	Upload(file *multipart.FileHeader) (url string, kind Kind, err error)
}

// DiskUploader writes blobs to a local directory served as static files.
type DiskUploader struct {
	dir       string
	publicURL string
	maxSize   int64
	logger    *zap.Logger
}

func NewDiskUploader(cfg config.StorageConfig, logger *zap.Logger) (*DiskUploader, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskUploader{
		dir:       cfg.Dir,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxSize:   int64(cfg.MaxSizeMB) << 20,
		logger:    logger,
	}, nil
}

// Upload stores the blob under a random name. The stored extension is
// taken from the original filename; the image/file classification comes
// from content sniffing, not the filename.
func (d *DiskUploader) Upload(fh *multipart.FileHeader) (string, Kind, error) {
	if fh.Size > d.maxSize {
		return "", KindFile, apperr.Validation("file too large")
	}

	src, err := fh.Open()
	if err != nil {
		return "", KindFile, apperr.Upstream("open upload", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", KindFile, apperr.Upstream("read upload", err)
	}
	kind := KindFile
	if strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		kind = KindImage
	}

	name := uuid.NewString() + sanitizeExt(fh.Filename)
	path := filepath.Join(d.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", kind, apperr.Upstream("create blob", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		return "", kind, apperr.Upstream("write blob", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", kind, apperr.Upstream("write blob", err)
	}

	d.logger.Debug("blob stored",
		zap.String("name", name),
		zap.Int64("size", fh.Size))
	return d.publicURL + "/" + name, kind, nil
}

// sanitizeExt returns a safe lowercase extension, or "" if the original
// has none or looks suspicious.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
