package client

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// SubmitSheetsJob starts region extraction for an uploaded spreadsheet.
func (c *client) SubmitSheetsJob(ctx context.Context, fileID string, cfg *SheetsConfig) (*SheetsJob, error) {
	if fileID == "" {
		return nil, ErrEmptyFileID
	}

	var job SheetsJob
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sheetsJobBody{FileID: fileID, Config: cfg}).
		SetResult(&job).
		Post(EndpointSheetsJobs)
	if err := checkResponse(OperationSubmitSheets, resp, err); err != nil {
		return nil, err
	}

	c.logger.Debug("sheets job submitted", zap.String("job_id", job.ID), zap.String("file_id", fileID))
	return &job, nil
}

// GetSheetsJob fetches a sheets job, including the detected regions when includeResults is set.
func (c *client) GetSheetsJob(ctx context.Context, jobID string, includeResults bool) (*SheetsJob, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var job SheetsJob
	resp, err := c.newRequest(ctx).
		SetPathParam("job_id", jobID).
		SetQueryParam("include_results", strconv.FormatBool(includeResults)).
		SetResult(&job).
		Get(EndpointSheetsJob)
	if err := checkResponse(OperationGetSheetsJob, resp, err); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForSheetsJob polls until the sheets job is terminal.
func (c *client) WaitForSheetsJob(ctx context.Context, jobID string) (*SheetsJob, error) {
	return waitForJob(ctx, c, OperationSheets, jobID, c.defaultPollConfig(),
		func(ctx context.Context, id string) (*SheetsJob, error) {
			return c.GetSheetsJob(ctx, id, false)
		})
}

// ExtractRegions uploads in if needed, runs a sheets job and returns it with its regions.
func (c *client) ExtractRegions(ctx context.Context, in FileInput, cfg *SheetsConfig) (*SheetsJob, error) {
	fileID, err := c.resolveFileID(ctx, in)
	if err != nil {
		return nil, err
	}

	job, err := c.SubmitSheetsJob(ctx, fileID, cfg)
	if err != nil {
		return nil, err
	}

	job, err = c.WaitForSheetsJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := requireCompleted(OperationSheets, job.ID, job); err != nil {
		return nil, err
	}

	return c.GetSheetsJob(ctx, job.ID, true)
}

// DownloadRegion fetches the extracted content of one region.
func (c *client) DownloadRegion(ctx context.Context, jobID string, region SheetRegion) ([]byte, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}
	if region.RegionID == "" {
		return nil, fmt.Errorf("%s: region id cannot be empty", OperationGetSheetsRegion)
	}

	regionType := region.RegionType
	if regionType == "" {
		regionType = "table"
	}

	var presigned presignedURLResponse
	resp, err := c.newRequest(ctx).
		SetPathParams(map[string]string{
			"job_id":      jobID,
			"region_id":   region.RegionID,
			"region_type": regionType,
		}).
		SetResult(&presigned).
		Get(EndpointSheetsRegionResult)
	if err := checkResponse(OperationGetSheetsRegion, resp, err); err != nil {
		return nil, err
	}

	return c.DownloadURL(ctx, presigned.URL)
}
