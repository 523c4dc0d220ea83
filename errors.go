package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrMissingAPIKey       = errors.New("api key is required (WithAPIKey or " + EnvAPIKey + ")")
	ErrEmptyJobID          = errors.New("job id cannot be empty")
	ErrEmptyFileID         = errors.New("file id cannot be empty")
	ErrEmptyFilePath       = errors.New("file path cannot be empty")
	ErrEmptyFileData       = errors.New("file data cannot be empty")
	ErrEmptyPresignedURL   = errors.New("presigned url cannot be empty")
	ErrEmptyDownloadURL    = errors.New("download url cannot be empty")
	ErrEmptyDownload       = errors.New("downloaded file is empty")
	ErrEmptyItemID         = errors.New("agent data id cannot be empty")
	ErrEmptyDeploymentName = errors.New("deployment name cannot be empty")
	ErrEmptySchema         = errors.New("data schema cannot be empty")
	ErrNoFiles             = errors.New("at least one file is required")
	ErrNoRules             = errors.New("at least one classification rule is required")
	ErrNoInput             = errors.New("exactly one input source is required")
	ErrNilReader           = errors.New("reader cannot be nil")
	ErrNilWriter           = errors.New("writer cannot be nil")
	ErrInvalidFilter       = errors.New("invalid filter operator")

	ErrNotFound     = errors.New("resource not found")
	ErrTimeout      = errors.New("timed out waiting for job")
	ErrJobFailed    = errors.New("job failed")
	ErrJobCancelled = errors.New("job cancelled")
	ErrValidation   = errors.New("payload does not match schema")
)

const errorBodyLimit = 512

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Operation  Operation
	StatusCode int
	Status     string
	RequestID  string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d: %s (request-id: %s)",
		e.Operation, e.StatusCode, e.Status, normalizeRequestID(e.RequestID))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is makes a 404 match ErrNotFound.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// JobFailedError reports a job that reached the ERROR status.
type JobFailedError struct {
	Operation Operation
	JobID     string
	Status    JobStatus
	Detail    string
}

func (e *JobFailedError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = "no detail provided"
	}
	return fmt.Sprintf("%s job %s ended with status %s: %s", e.Operation, e.JobID, e.Status, detail)
}

func (e *JobFailedError) Is(target error) bool {
	if e.Status == StatusCancelled {
		return target == ErrJobCancelled
	}
	return target == ErrJobFailed
}

// TimeoutError reports that polling gave up. The job itself may still finish.
type TimeoutError struct {
	Operation  Operation
	JobID      string
	Elapsed    time.Duration
	LastStatus JobStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s job %s not finished after %s (last status %s); it may still complete",
		e.Operation, e.JobID, e.Elapsed.Round(time.Millisecond), e.LastStatus)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// errStatus builds an HTTPError from a non-success response.
func errStatus(operation Operation, resp *resty.Response) error {
	requestID := resp.Header().Get(RequestIDHeader)
	if requestID == "" && resp.Request != nil {
		requestID = resp.Request.Header.Get(RequestIDHeader)
	}

	body := resp.String()
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit] + "..."
	}

	return &HTTPError{
		Operation:  operation,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		RequestID:  requestID,
		Body:       body,
	}
}

// checkResponse folds transport and status failures into one error.
func checkResponse(operation Operation, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	if !resp.IsSuccess() {
		return errStatus(operation, resp)
	}
	return nil
}

func normalizeRequestID(requestID string) string {
	if requestID == "" {
		return "unknown"
	}
	return requestID
}
