package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/pkg/config"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
	"github.com/sibec-dev/becas-api/pkg/storage"
)

// DocumentStore resolves stored document descriptors.
type DocumentStore interface {
	FindDocumentByID(ctx context.Context, id string) (*models.ApplicationDocument, error)
}

// SignedDocumentURL is a short-lived download grant for one document.
type SignedDocumentURL struct {
	DocumentID string    `json:"document_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DocumentService stores uploaded supporting documents and issues signed
// download grants so raw storage paths never leave the server.
type DocumentService struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	repo   DocumentStore
	cfg    config.DocumentsConfig
	logger *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, repo DocumentStore, cfg config.DocumentsConfig, logger *zap.Logger) *DocumentService {
	return &DocumentService{store: store, signer: signer, repo: repo, cfg: cfg, logger: logger}
}

// Upload stores an uploaded file and returns the storage reference to embed
// in an application document descriptor.
func (s *DocumentService) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if size > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !s.mimeAllowed(contentType) {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q not accepted", contentType))
	}

	ext := filepath.Ext(filename)
	relPath := filepath.Join("applications", uuid.NewString()+ext)
	// Read one byte past the limit so an understated Content-Length cannot
	// smuggle a larger body through as a silently truncated file.
	counted := &countingReader{r: io.LimitReader(r, s.cfg.MaxFileSizeBytes+1)}
	ref, err := s.store.SaveStream(relPath, counted)
	if err != nil {
		return "", err
	}
	if counted.n > s.cfg.MaxFileSizeBytes {
		if err := s.store.Delete(relPath); err != nil {
			s.logger.Warn("remove oversize upload", zap.String("storage_ref", relPath), zap.Error(err))
		}
		return "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}

	s.logger.Sugar().Infow("document stored", "storage_ref", ref, "content_type", contentType, "size", size)
	return ref, nil
}

// SignedURL issues a download grant for a stored document.
func (s *DocumentService) SignedURL(ctx context.Context, documentID string) (*SignedDocumentURL, error) {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("sign document url: %w", err)
	}
	return &SignedDocumentURL{DocumentID: doc.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve validates a download token and opens the referenced file. The
// caller owns the returned handle.
func (s *DocumentService) Resolve(ctx context.Context, token string) (*models.ApplicationDocument, io.ReadCloser, error) {
	documentID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.StorageRef != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match the stored document")
	}
	file, err := s.store.Open(doc.StorageRef)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document file missing")
	}
	return doc, file, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *DocumentService) findDocument(ctx context.Context, id string) (*models.ApplicationDocument, error) {
	doc, err := s.repo.FindDocumentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	return doc, nil
}
