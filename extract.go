package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/hsn0918/llamacloud-client/batch"
)

// SubmitExtraction starts a stateless extraction against an ad-hoc data schema.
func (c *client) SubmitExtraction(ctx context.Context, req ExtractRequest) (*ExtractJob, error) {
	if err := validateDataSchema(req.DataSchema); err != nil {
		return nil, err
	}

	fileID, err := c.resolveFileID(ctx, req.File)
	if err != nil {
		return nil, err
	}

	var job ExtractJob
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(statelessExtractBody{DataSchema: req.DataSchema, Config: req.Config, FileID: fileID}).
		SetResult(&job).
		Post(EndpointExtractStateless)
	if err := checkResponse(OperationSubmitExtraction, resp, err); err != nil {
		return nil, err
	}

	c.logger.Debug("extraction submitted", zap.String("job_id", job.ID), zap.String("file_id", fileID))
	return &job, nil
}

// SubmitAgentExtraction starts an extraction with a stored extraction agent.
// A non-zero Config is sent as an override of the agent's configuration.
func (c *client) SubmitAgentExtraction(ctx context.Context, req ExtractRequest) (*ExtractJob, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("%s: extraction agent id cannot be empty", OperationSubmitExtraction)
	}

	fileID, err := c.resolveFileID(ctx, req.File)
	if err != nil {
		return nil, err
	}

	body := agentExtractBody{ExtractionAgentID: req.AgentID, FileID: fileID}
	if req.Config != (ExtractConfig{}) {
		cfg := req.Config
		body.ConfigOverride = &cfg
	}

	var job ExtractJob
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&job).
		Post(EndpointExtractJobs)
	if err := checkResponse(OperationSubmitExtraction, resp, err); err != nil {
		return nil, err
	}

	c.logger.Debug("agent extraction submitted", zap.String("job_id", job.ID), zap.String("agent_id", req.AgentID))
	return &job, nil
}

// GetExtractJob fetches the status of an extraction job.
func (c *client) GetExtractJob(ctx context.Context, jobID string) (*ExtractJob, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var job ExtractJob
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&job).
		Get(EndpointExtractJob)
	if err := checkResponse(OperationGetExtractJob, resp, err); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForExtractJob polls until the extraction job is terminal. Errored jobs
// are returned rather than failed so their run can still be inspected.
func (c *client) WaitForExtractJob(ctx context.Context, jobID string) (*ExtractJob, error) {
	cfg := c.defaultPollConfig()
	cfg.tolerant = true
	return waitForJob(ctx, c, OperationExtraction, jobID, cfg, c.GetExtractJob)
}

// GetExtractRun fetches the run produced by an extraction job.
func (c *client) GetExtractRun(ctx context.Context, jobID string) (*ExtractRun, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var run ExtractRun
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetResult(&run).
		Get(EndpointExtractRunByJob)
	if err := checkResponse(OperationGetExtractRun, resp, err); err != nil {
		return nil, err
	}
	if run.JobID == "" {
		run.JobID = jobID
	}
	return &run, nil
}

// Extract runs one extraction end to end.
func (c *client) Extract(ctx context.Context, req ExtractRequest) (*ExtractRun, error) {
	var (
		job *ExtractJob
		err error
	)
	if req.AgentID != "" {
		job, err = c.SubmitAgentExtraction(ctx, req)
	} else {
		job, err = c.SubmitExtraction(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	job, err = c.WaitForExtractJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := requireCompleted(OperationExtraction, job.ID, job); err != nil {
		return nil, err
	}

	return c.GetExtractRun(ctx, job.ID)
}

// ExtractFiles extracts every path with the settings of template.
func (c *client) ExtractFiles(ctx context.Context, template ExtractRequest, paths []string, opts ...batch.Option) []batch.Outcome[string, *ExtractRun] {
	if template.AgentID == "" {
		if err := validateDataSchema(template.DataSchema); err != nil {
			outcomes := make([]batch.Outcome[string, *ExtractRun], len(paths))
			for i, p := range paths {
				outcomes[i] = batch.Outcome[string, *ExtractRun]{Index: i, Item: p, Err: err}
			}
			return outcomes
		}
	}

	opts = append([]batch.Option{batch.WithConcurrency(c.concurrency)}, opts...)
	outcomes := batch.Run(ctx, paths, func(ctx context.Context, path string) (*ExtractRun, error) {
		req := template
		req.File = FileInput{Path: path}
		return c.Extract(ctx, req)
	}, opts...)

	logFailures(c.logger, OperationExtraction, batch.Failures(outcomes))
	return outcomes
}

// validateDataSchema compiles schema locally so malformed schemas fail before upload.
func validateDataSchema(schema map[string]any) error {
	if len(schema) == 0 {
		return ErrEmptySchema
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode data schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("data_schema.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := compiler.Compile("data_schema.json"); err != nil {
		return fmt.Errorf("%w: invalid data schema: %w", ErrValidation, err)
	}
	return nil
}
