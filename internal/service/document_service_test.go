package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/pkg/config"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
	"github.com/sibec-dev/becas-api/pkg/storage"
)

func newDocumentFixture(t *testing.T, maxBytes int64) (*DocumentService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	cfg := config.DocumentsConfig{
		StorageDir:       dir,
		MaxFileSizeBytes: maxBytes,
	}
	return NewDocumentService(store, signer, nil, cfg, zap.NewNop()), dir
}

func TestDocumentServiceUploadStoresWithinLimit(t *testing.T) {
	svc, _ := newDocumentFixture(t, 64)
	body := bytes.Repeat([]byte("a"), 64)

	ref, err := svc.Upload(context.Background(), "grades.pdf", "application/pdf", int64(len(body)), bytes.NewReader(body))
	require.NoError(t, err)
	require.NotEmpty(t, ref)
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	file, err := svc.store.Open(ref)
	require.NoError(t, err)
	defer file.Close()
	stored, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestDocumentServiceUploadRejectsUnderstatedSize(t *testing.T) {
	svc, dir := newDocumentFixture(t, 16)
	body := bytes.Repeat([]byte("b"), 32)

	// The declared size fits the limit but the actual body does not.
	_, err := svc.Upload(context.Background(), "grades.pdf", "application/pdf", 8, bytes.NewReader(body))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	entries, readErr := os.ReadDir(filepath.Join(dir, "applications"))
	require.NoError(t, readErr)
	assert.Empty(t, entries, "rejected upload must not leave a file behind")
}

func TestDocumentServiceUploadRejectsDeclaredOversize(t *testing.T) {
	svc, _ := newDocumentFixture(t, 16)

	_, err := svc.Upload(context.Background(), "grades.pdf", "application/pdf", 99, strings.NewReader("tiny"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
