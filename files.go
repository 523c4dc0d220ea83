package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// UploadFile uploads a local file. externalID defaults to path.
func (c *client) UploadFile(ctx context.Context, path, externalID string) (*File, error) {
	if path == "" {
		return nil, ErrEmptyFilePath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if externalID == "" {
		externalID = path
	}
	return c.UploadReader(ctx, f, filepath.Base(path), externalID, info.Size())
}

// UploadBytes uploads an in-memory document named after externalID.
func (c *client) UploadBytes(ctx context.Context, data []byte, externalID string) (*File, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFileData
	}
	return c.UploadReader(ctx, bytes.NewReader(data), externalID, externalID, int64(len(data)))
}

// UploadReader streams r to storage. size may be zero when unknown.
func (c *client) UploadReader(ctx context.Context, r io.Reader, name, externalID string, size int64) (*File, error) {
	if r == nil {
		return nil, ErrNilReader
	}
	if name == "" {
		name = externalID
	}

	var (
		file *File
		err  error
	)
	if c.presignedUploads {
		file, err = c.uploadPresigned(ctx, r, name, externalID, size)
	} else {
		file, err = c.uploadDirect(ctx, r, name, externalID)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("file uploaded", zap.String("file_id", file.ID), zap.String("name", name),
		zap.Bool("presigned", c.presignedUploads))
	return file, nil
}

// uploadPresigned requests a presigned PUT URL, sends the bytes there and
// reads back the stored file record.
func (c *client) uploadPresigned(ctx context.Context, r io.Reader, name, externalID string, size int64) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFileData
	}
	if size <= 0 {
		size = int64(len(data))
	}

	var presigned presignedUploadResponse
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(fileCreateRequest{Name: name, ExternalFileID: externalID, FileSize: size}).
		SetResult(&presigned).
		Put(EndpointFiles)
	if err := checkResponse(OperationPresignUpload, resp, err); err != nil {
		return nil, err
	}

	if err := c.uploadToPresignedURL(ctx, presigned.URL, data); err != nil {
		return nil, err
	}

	return c.GetFile(ctx, presigned.FileID)
}

func (c *client) uploadToPresignedURL(ctx context.Context, url string, data []byte) error {
	if url == "" {
		return ErrEmptyPresignedURL
	}

	resp, err := c.transferClient.R().
		SetContext(ctx).
		SetBody(data).
		Put(url)
	return checkResponse(OperationPresignedPut, resp, err)
}

// uploadDirect sends the file as multipart form data in one request.
func (c *client) uploadDirect(ctx context.Context, r io.Reader, name, externalID string) (*File, error) {
	req := c.newRequest(ctx).SetFileReader("upload_file", name, r)
	if externalID != "" {
		req.SetQueryParam("external_file_id", externalID)
	}

	var file File
	resp, err := req.SetResult(&file).Post(EndpointFiles)
	if err := checkResponse(OperationDirectUpload, resp, err); err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFile fetches a file record.
func (c *client) GetFile(ctx context.Context, fileID string) (*File, error) {
	if fileID == "" {
		return nil, ErrEmptyFileID
	}

	var file File
	resp, err := c.newRequest(ctx).
		SetPathParam("file_id", fileID).
		SetResult(&file).
		Get(EndpointFile)
	if err := checkResponse(OperationGetFile, resp, err); err != nil {
		return nil, err
	}
	return &file, nil
}

// ReadFileContent downloads the stored bytes of a file.
func (c *client) ReadFileContent(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.fileContentURL(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.DownloadURL(ctx, url)
}

// ReadFileContentTo streams the stored bytes of a file into dst.
func (c *client) ReadFileContentTo(ctx context.Context, fileID string, dst io.Writer) error {
	if dst == nil {
		return ErrNilWriter
	}
	url, err := c.fileContentURL(ctx, fileID)
	if err != nil {
		return err
	}
	return c.DownloadURLTo(ctx, url, dst)
}

func (c *client) fileContentURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrEmptyFileID
	}

	var presigned presignedURLResponse
	resp, err := c.newRequest(ctx).
		SetPathParam("file_id", fileID).
		SetResult(&presigned).
		Get(EndpointFileContent)
	if err := checkResponse(OperationFileContentURL, resp, err); err != nil {
		return "", err
	}
	if presigned.URL == "" {
		return "", ErrEmptyDownloadURL
	}
	return presigned.URL, nil
}

// DownloadURL downloads a file from a presigned URL.
func (c *client) DownloadURL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrEmptyDownloadURL
	}

	resp, err := c.transferClient.R().
		SetContext(ctx).
		Get(unescapeURL(url))
	if err := checkResponse(OperationDownload, resp, err); err != nil {
		return nil, err
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, ErrEmptyDownload
	}
	return data, nil
}

// DownloadURLTo streams a presigned URL into dst without buffering the body.
func (c *client) DownloadURLTo(ctx context.Context, url string, dst io.Writer) error {
	if url == "" {
		return ErrEmptyDownloadURL
	}
	if dst == nil {
		return ErrNilWriter
	}

	resp, err := c.transferClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(unescapeURL(url))
	if err != nil {
		return fmt.Errorf("%s failed: %w", OperationDownload, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return &HTTPError{
			Operation:  OperationDownload,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			RequestID:  resp.Header().Get(RequestIDHeader),
		}
	}

	n, err := io.Copy(dst, body)
	if err != nil {
		return fmt.Errorf("%s failed: %w", OperationDownload, err)
	}
	if n == 0 {
		return ErrEmptyDownload
	}
	return nil
}

// unescapeURL undoes the JSON escaping some presigned URLs arrive with.
func unescapeURL(url string) string {
	return strings.ReplaceAll(url, "\\u0026", "&")
}

// resolveFileID uploads in when needed and returns the stored file id.
func (c *client) resolveFileID(ctx context.Context, in FileInput) (string, error) {
	if in.sources() != 1 {
		return "", ErrNoInput
	}
	switch {
	case in.FileID != "":
		return in.FileID, nil
	case in.Path != "":
		file, err := c.UploadFile(ctx, in.Path, "")
		if err != nil {
			return "", err
		}
		return file.ID, nil
	default:
		name := in.Name
		if name == "" {
			name = "document"
		}
		file, err := c.UploadBytes(ctx, in.Data, name)
		if err != nil {
			return "", err
		}
		return file.ID, nil
	}
}
