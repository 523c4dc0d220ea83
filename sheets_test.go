package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRegionsAndDownload(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)
	ctx := context.Background()

	job, err := c.ExtractRegions(ctx, FileInput{Data: []byte("xlsx"), Name: "book.xlsx"},
		&SheetsConfig{SheetNames: []string{"Sheet1"}, GenerateAdditionalMetadata: true})
	require.NoError(t, err)
	require.Len(t, job.Regions, 1)
	require.NotNil(t, job.Success)
	assert.True(t, *job.Success)
	assert.Equal(t, "Totals", job.WorksheetMetadata[0].Title)

	sheetsJobs := fc.jobsOf("sheets")
	require.Len(t, sheetsJobs, 1)
	cfg := sheetsJobs[0].body["config"].(map[string]any)
	assert.Equal(t, []any{"Sheet1"}, cfg["sheet_names"])

	data, err := c.DownloadRegion(ctx, job.ID, job.Regions[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("parquet-bytes"), data)
}

func TestExtractRegionsFailedJob(t *testing.T) {
	fc := newFakeCloud(t)
	fc.statuses = []JobStatus{StatusError}
	c, _ := fc.newClient(t)

	_, err := c.ExtractRegions(context.Background(), FileInput{FileID: "file-1"}, nil)
	assert.ErrorIs(t, err, ErrJobFailed)
}

func TestDownloadRegionValidation(t *testing.T) {
	fc := newFakeCloud(t)
	c, _ := fc.newClient(t)

	_, err := c.DownloadRegion(context.Background(), "", SheetRegion{RegionID: "r1"})
	assert.ErrorIs(t, err, ErrEmptyJobID)
	_, err = c.DownloadRegion(context.Background(), "job-1", SheetRegion{})
	assert.Error(t, err)
}
