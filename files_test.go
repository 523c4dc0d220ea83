package client

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClientReadsEnvironment(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvBaseURL, "https://example.test/")
	t.Setenv(EnvProjectID, "proj-env")

	c, err := NewClient()
	require.NoError(t, err)
	impl := c.(*client)
	assert.Equal(t, "env-key", impl.apiKey)
	assert.Equal(t, "https://example.test", impl.restyClient.BaseURL)
	assert.Equal(t, "proj-env", impl.projectID)
	assert.Equal(t, ServiceName, c.Name())
	assert.Equal(t, APIVersion, c.Version())
}

func TestUploadBytesPresigned(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)

	file, err := c.UploadBytes(context.Background(), []byte("%PDF-1.7 body"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", file.Name)
	assert.Equal(t, "report.pdf", file.ExternalFileID)
	assert.Equal(t, []byte("%PDF-1.7 body"), fc.blobs[file.ID])

	presign := fc.requestsTo(http.MethodPut, EndpointFiles)
	require.Len(t, presign, 1)
	assert.Equal(t, "Bearer test-key", presign[0].Header.Get("Authorization"))
	assert.NotEmpty(t, presign[0].Header.Get(RequestIDHeader))
	assert.Empty(t, fc.requestsTo(http.MethodPut, "/blob/")[0].Header.Get("Authorization"))
}

func TestUploadFileDirect(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t, WithPresignedUploads(false))

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("invoice"), 0o600))

	file, err := c.UploadFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", file.Name)
	assert.Equal(t, path, file.ExternalFileID)
	assert.Equal(t, []byte("invoice"), fc.blobs[file.ID])
	assert.Empty(t, fc.requestsTo(http.MethodPut, EndpointFiles))
}

func TestReadFileContent(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)

	file, err := c.UploadBytes(context.Background(), []byte("hello"), "hello.txt")
	require.NoError(t, err)

	data, err := c.ReadFileContent(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	var buf bytes.Buffer
	require.NoError(t, c.ReadFileContentTo(context.Background(), file.ID, &buf))
	assert.Equal(t, "hello", buf.String())
}

func TestGetFileNotFound(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)

	_, err := c.GetFile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, OperationGetFile, httpErr.Operation)
	assert.NotEmpty(t, httpErr.RequestID)
	assert.Contains(t, httpErr.Body, "not found")

	_, err = c.ReadFileContent(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadURLErrors(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)

	_, err := c.DownloadURL(context.Background(), fc.srv.URL+"/blob/none")
	assert.ErrorIs(t, err, ErrNotFound)

	err = c.DownloadURLTo(context.Background(), fc.srv.URL+"/blob/none", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadValidation(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)
	ctx := context.Background()

	_, err := c.UploadBytes(ctx, nil, "x")
	assert.ErrorIs(t, err, ErrEmptyFileData)
	_, err = c.UploadReader(ctx, nil, "x", "x", 0)
	assert.ErrorIs(t, err, ErrNilReader)
	_, err = c.UploadFile(ctx, "", "")
	assert.ErrorIs(t, err, ErrEmptyFilePath)
	_, err = c.GetFile(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyFileID)
	_, err = c.DownloadURL(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyDownloadURL)
	assert.ErrorIs(t, c.ReadFileContentTo(ctx, "f", nil), ErrNilWriter)
	assert.Empty(t, fc.requestsTo(http.MethodPut, EndpointFiles))
}

func TestRequestsCarryProjectScope(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t, WithProject("proj-1", "org-1"))

	_, err := c.GetFile(context.Background(), "missing")
	require.Error(t, err)

	reqs := fc.requestsTo(http.MethodGet, EndpointFiles)
	require.Len(t, reqs, 1)
	assert.Equal(t, "proj-1", reqs[0].URL.Query().Get("project_id"))
	assert.Equal(t, "org-1", reqs[0].URL.Query().Get("organization_id"))
}
