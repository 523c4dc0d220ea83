package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/hsn0918/llamacloud-client/batch"
	"github.com/hsn0918/llamacloud-client/pages"
)

// SubmitParseJob uploads the document as multipart form data and starts a parse job.
func (c *client) SubmitParseJob(ctx context.Context, req ParseRequest) (*ParseJob, error) {
	sources := req.File.sources()
	if req.InputURL != "" {
		sources++
	}
	if sources != 1 {
		return nil, ErrNoInput
	}

	r := c.newRequest(ctx).SetMultipartFormData(req.formData())
	switch {
	case req.File.Path != "":
		data, err := os.ReadFile(req.File.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.File.Path, err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyFileData
		}
		r.SetFileReader("file", filepath.Base(req.File.Path), bytes.NewReader(data))
	case len(req.File.Data) > 0:
		name := req.File.Name
		if name == "" {
			name = "document"
		}
		r.SetFileReader("file", name, bytes.NewReader(req.File.Data))
	}

	var job ParseJob
	resp, err := r.SetResult(&job).Post(EndpointParseUpload)
	if err := checkResponse(OperationSubmitParse, resp, err); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%s succeeded but returned no job id", OperationSubmitParse)
	}

	c.logger.Debug("parse job submitted", zap.String("job_id", job.ID), zap.String("file", req.File.DisplayName()))
	return &job, nil
}

// GetParseJob fetches the status of a parse job.
func (c *client) GetParseJob(ctx context.Context, jobID string) (*ParseJob, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var job ParseJob
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&job).
		Get(EndpointParseJob)
	if err := checkResponse(OperationGetParseJob, resp, err); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForParseJob polls until the parse job is terminal.
func (c *client) WaitForParseJob(ctx context.Context, jobID string) (*ParseJob, error) {
	return waitForJob(ctx, c, OperationParsing, jobID, c.defaultPollConfig(), c.GetParseJob)
}

// GetParseResult fetches the JSON result of a finished parse job.
func (c *client) GetParseResult(ctx context.Context, jobID string) (*ParseResult, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var result ParseResult
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&result).
		Get(EndpointParseResult)
	if err := checkResponse(OperationGetParseResult, resp, err); err != nil {
		return nil, err
	}
	result.JobID = jobID
	return &result, nil
}

// Parse submits a parse job, waits for it and fetches the result.
func (c *client) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	job, err := c.SubmitParseJob(ctx, req)
	if err != nil {
		return nil, err
	}

	job, err = c.WaitForParseJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := requireCompleted(OperationParsing, job.ID, job); err != nil {
		return nil, err
	}

	result, err := c.GetParseResult(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	result.FileName = req.File.DisplayName()
	if result.FileName == "" {
		result.FileName = req.InputURL
	}
	return result, nil
}

// ParseFiles parses every path with the settings of template.
func (c *client) ParseFiles(ctx context.Context, template ParseRequest, paths []string, opts ...batch.Option) []batch.Outcome[string, *ParseResult] {
	opts = append([]batch.Option{batch.WithConcurrency(c.concurrency)}, opts...)
	outcomes := batch.Run(ctx, paths, func(ctx context.Context, path string) (*ParseResult, error) {
		req := template
		req.File = FileInput{Path: path}
		req.InputURL = ""
		return c.Parse(ctx, req)
	}, opts...)

	logFailures(c.logger, OperationParsing, batch.Failures(outcomes))
	return outcomes
}

// ParseSplit uploads one document once and parses it as several jobs of at
// most pagesPerJob pages each, merging the pages back in order. When some
// partitions fail the merged result of the others is returned with the error.
func (c *client) ParseSplit(ctx context.Context, req ParseRequest, pagesPerJob int, opts ...batch.Option) (*ParseResult, error) {
	if req.InputURL != "" || req.File.sources() != 1 {
		return nil, ErrNoInput
	}

	var data []byte
	in := req.File
	if in.Path != "" {
		raw, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", in.Path, err)
		}
		data = raw
	} else {
		data = in.Data
	}

	fileID := in.FileID
	if fileID == "" {
		if len(data) == 0 {
			return nil, ErrEmptyFileData
		}
		name, externalID := in.Name, in.Name
		if in.Path != "" {
			externalID = in.Path
			if name == "" {
				name = filepath.Base(in.Path)
			}
		}
		file, err := c.UploadReader(ctx, bytes.NewReader(data), name, externalID, int64(len(data)))
		if err != nil {
			return nil, err
		}
		fileID = file.ID
	}

	var targets []int
	if req.TargetPages != "" {
		expanded, err := pages.ExpandTargetPages(req.TargetPages)
		if err != nil {
			return nil, err
		}
		targets = expanded
	} else {
		if data == nil {
			content, err := c.ReadFileContent(ctx, fileID)
			if err != nil {
				return nil, err
			}
			data = content
		}
		count, err := countPDFPages(data)
		if err != nil {
			return nil, err
		}
		targets = pages.Range(count)
	}

	partitions, err := pages.PartitionPages(targets, pagesPerJob)
	if err != nil {
		return nil, err
	}

	c.logger.Info("parsing in partitions", zap.String("file_id", fileID),
		zap.Int("pages", len(targets)), zap.Int("jobs", len(partitions)))

	opts = append([]batch.Option{batch.WithConcurrency(c.concurrency)}, opts...)
	outcomes := batch.Run(ctx, partitions, func(ctx context.Context, targetPages string) (*ParseResult, error) {
		sub := req
		sub.File = FileInput{FileID: fileID, Name: in.Name}
		sub.TargetPages = targetPages
		return c.Parse(ctx, sub)
	}, opts...)

	merged := &ParseResult{FileName: in.DisplayName()}
	var errs []error
	for _, o := range outcomes {
		if !o.OK() {
			errs = append(errs, fmt.Errorf("pages %s: %w", o.Item, o.Err))
			continue
		}
		merged.Pages = append(merged.Pages, o.Value.Pages...)
		if merged.JobID == "" {
			merged.JobID = o.Value.JobID
		}
	}
	return merged, errors.Join(errs...)
}

// countPDFPages reads the page count, tolerating minor structural damage.
func countPDFPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return count, nil
}

// logFailures records batch items that failed.
func logFailures[R any](logger *zap.Logger, operation Operation, failures []batch.Outcome[string, R]) {
	for _, f := range failures {
		logger.Warn("batch item failed", zap.String("operation", string(operation)),
			zap.String("item", f.Item), zap.Error(f.Err))
	}
}
