package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"github.com/google/uuid"
)

// AttachmentStore persists uploaded complaint attachments and returns a
// URL reference for the complaint record. The core never stores file
// bytes in the database.
type AttachmentStore interface {
	// Save stores the upload and returns its reference
	Save(ctx context.Context, filename string, r io.Reader) (models.Attachment, error)
}

// LocalAttachmentStore stores attachments on the local filesystem under a
// configured directory, served back via the configured base URL.
type LocalAttachmentStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	logger   *observability.Logger
}

// NewLocalAttachmentStore creates the attachments directory if needed.
func NewLocalAttachmentStore(cfg config.StorageConfig, logger *observability.Logger) (result0 *LocalAttachmentStore, err error) {
	if logger == nil {
		panic("NewLocalAttachmentStore: logger is nil")
	}
	if err = os.MkdirAll(cfg.AttachmentsDir, 0o755); err != nil {
		return nil, contextutils.WrapError(err, "failed to create attachments directory")
	}
	return &LocalAttachmentStore{
		dir:      cfg.AttachmentsDir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger,
	}, nil
}

// Save stores the upload under a random name, preserving the original
// extension. Uploads over the size limit fail without leaving a partial
// file behind.
func (s *LocalAttachmentStore) Save(ctx context.Context, filename string, r io.Reader) (result0 models.Attachment, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "save_attachment")
	defer observability.FinishSpan(span, &err)

	ext := strings.ToLower(filepath.Ext(filename))
	storedName := uuid.NewString() + ext
	path := filepath.Join(s.dir, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.Attachment{}, contextutils.WrapError(err, "failed to create attachment file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = contextutils.WrapError(cerr, "failed to close attachment file")
		}
		if err != nil {
			if rerr := os.Remove(path); rerr != nil {
				s.logger.Warn(ctx, "Failed to remove partial attachment", map[string]interface{}{
					"path":  path,
					"error": rerr.Error(),
				})
			}
		}
	}()

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return models.Attachment{}, contextutils.WrapError(err, "failed to write attachment")
	}
	if written > s.maxBytes {
		err = contextutils.WrapErrorf(contextutils.ErrValidationFailed, "attachment exceeds the %d byte limit", s.maxBytes)
		return models.Attachment{}, err
	}

	return models.Attachment{
		URL:      fmt.Sprintf("%s/%s", s.baseURL, storedName),
		Filename: filepath.Base(filename),
	}, nil
}
