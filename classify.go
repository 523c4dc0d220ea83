package client

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hsn0918/llamacloud-client/batch"
)

// SubmitClassifyJob starts classifying already uploaded files.
func (c *client) SubmitClassifyJob(ctx context.Context, rules []ClassifierRule, fileIDs []string, cfg *ClassifyParsingConfig) (*ClassifyJob, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if len(fileIDs) == 0 {
		return nil, ErrNoFiles
	}

	var job ClassifyJob
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(classifyJobBody{Rules: rules, FileIDs: fileIDs, ParsingConfig: cfg}).
		SetResult(&job).
		Post(EndpointClassifyJobs)
	if err := checkResponse(OperationSubmitClassify, resp, err); err != nil {
		return nil, err
	}

	c.logger.Debug("classify job submitted", zap.String("job_id", job.ID), zap.Int("files", len(fileIDs)))
	return &job, nil
}

// GetClassifyJob fetches the status of a classify job.
func (c *client) GetClassifyJob(ctx context.Context, jobID string) (*ClassifyJob, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var job ClassifyJob
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&job).
		Get(EndpointClassifyJob)
	if err := checkResponse(OperationGetClassifyJob, resp, err); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForClassifyJob polls until the classify job is terminal. With
// raiseOnError false an ERROR job is returned instead of failing.
func (c *client) WaitForClassifyJob(ctx context.Context, jobID string, raiseOnError bool) (*ClassifyJob, error) {
	cfg := c.defaultPollConfig()
	cfg.tolerant = !raiseOnError
	return waitForJob(ctx, c, OperationClassification, jobID, cfg, c.GetClassifyJob)
}

// GetClassifyResults fetches the verdicts of a classify job.
func (c *client) GetClassifyResults(ctx context.Context, jobID string) (*ClassifyJobResults, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var results ClassifyJobResults
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&results).
		Get(EndpointClassifyResults)
	if err := checkResponse(OperationGetClassifyRes, resp, err); err != nil {
		return nil, err
	}
	return &results, nil
}

// ClassifyFileIDs classifies stored files and returns their verdicts. When
// raiseOnError is false an errored job still yields whatever results exist.
func (c *client) ClassifyFileIDs(ctx context.Context, rules []ClassifierRule, fileIDs []string, cfg *ClassifyParsingConfig, raiseOnError bool) (*ClassifyJobResults, error) {
	job, err := c.SubmitClassifyJob(ctx, rules, fileIDs, cfg)
	if err != nil {
		return nil, err
	}

	job, err = c.WaitForClassifyJob(ctx, job.ID, raiseOnError)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusError {
		c.logger.Warn("classify job ended with errors", zap.String("job_id", job.ID),
			zap.String("detail", job.ErrorMessage))
	}

	return c.GetClassifyResults(ctx, job.ID)
}

// ClassifyFilePaths uploads local files concurrently and classifies the ones
// that uploaded. Failed uploads are reported alongside the verdicts; the call
// only fails outright when no file could be uploaded.
func (c *client) ClassifyFilePaths(ctx context.Context, rules []ClassifierRule, paths []string, cfg *ClassifyParsingConfig, raiseOnError bool, opts ...batch.Option) (*ClassifyFilesResult, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	opts = append([]batch.Option{batch.WithConcurrency(c.concurrency)}, opts...)
	uploads := batch.Run(ctx, paths, func(ctx context.Context, path string) (*File, error) {
		return c.UploadFile(ctx, path, "")
	}, opts...)

	out := &ClassifyFilesResult{}
	byID := make(map[string]*ClassifiedFile)
	var fileIDs []string
	var errs []error
	for _, u := range uploads {
		if !u.OK() {
			out.FailedUploads = append(out.FailedUploads, FileFailure{Path: u.Item, Err: u.Err})
			errs = append(errs, u.Err)
			continue
		}
		out.Items = append(out.Items, ClassifiedFile{Path: u.Item, File: u.Value})
		fileIDs = append(fileIDs, u.Value.ID)
	}
	logFailures(c.logger, OperationClassification, batch.Failures(uploads))

	if len(fileIDs) == 0 {
		return out, errors.Join(errs...)
	}
	for i := range out.Items {
		byID[out.Items[i].File.ID] = &out.Items[i]
	}

	job, err := c.SubmitClassifyJob(ctx, rules, fileIDs, cfg)
	if err != nil {
		return out, err
	}
	out.JobID = job.ID

	job, err = c.WaitForClassifyJob(ctx, job.ID, raiseOnError)
	if err != nil {
		return out, err
	}
	out.Status = job.Status

	results, err := c.GetClassifyResults(ctx, job.ID)
	if err != nil {
		return out, err
	}
	for i := range results.Items {
		if item, ok := byID[results.Items[i].FileID]; ok {
			item.Classification = &results.Items[i]
		}
	}
	return out, nil
}
