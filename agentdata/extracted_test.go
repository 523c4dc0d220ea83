package agentdata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/fieldmeta"
)

func extractRun(data map[string]any, fieldMetadata map[string]any) *client.ExtractRun {
	return &client.ExtractRun{
		ID:                 "extract-123",
		JobID:              "job-123",
		ExtractionAgentID:  "agent-1",
		Status:             "SUCCESS",
		Data:               data,
		ExtractionMetadata: map[string]any{"field_metadata": fieldMetadata},
		File:               &client.File{ID: "file-456", Name: "resume.pdf"},
	}
}

func resumeMetadata() map[string]any {
	return map[string]any{
		"name": map[string]any{
			"confidence": 0.95,
			"citation":   []any{map[string]any{"page": float64(1), "matching_text": "John Doe"}},
		},
		"age": map[string]any{"confidence": 0.87},
		"email": map[string]any{
			"confidence": 0.92,
			"citation":   []any{map[string]any{"page": float64(1), "matching_text": "john@example.com"}},
		},
	}
}

func TestNewExtractedDataDefaults(t *testing.T) {
	p := person{Name: "Ann", Age: 5}
	got := NewExtractedData(p)

	assert.Equal(t, StatusPendingReview, got.Status)
	assert.Equal(t, p, got.OriginalData)
	assert.Equal(t, p, got.Data)
	assert.Nil(t, got.OverallConfidence)
	assert.NotNil(t, got.Metadata)
}

func TestNewExtractedDataComputesConfidence(t *testing.T) {
	tree, err := fieldmeta.Parse(map[string]any{
		"a": map[string]any{"confidence": 0.5},
		"b": []any{map[string]any{"confidence": 1.0}},
	})
	require.NoError(t, err)

	got := NewExtractedData(person{}, WithFieldMetadata(tree), WithStatus(StatusAccepted))
	require.NotNil(t, got.OverallConfidence)
	assert.InDelta(t, 0.75, *got.OverallConfidence, 1e-9)
	assert.Equal(t, StatusAccepted, got.Status)
}

func TestFromExtractionResult(t *testing.T) {
	run := extractRun(
		map[string]any{"name": "John Doe", "age": float64(30), "email": "john@example.com"},
		resumeMetadata(),
	)

	got, err := FromExtractionResult[person](run, nil, WithFileHash("abc123"), WithStatus(StatusAccepted))
	require.NoError(t, err)

	assert.Equal(t, person{Name: "John Doe", Age: 30, Email: "john@example.com"}, got.Data)
	assert.Equal(t, got.Data, got.OriginalData)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Equal(t, "file-456", got.FileID)
	assert.Equal(t, "resume.pdf", got.FileName)
	assert.Equal(t, "abc123", got.FileHash)
	assert.Equal(t, "job-123", got.Metadata[MetadataJobID])

	leaf, ok := got.FieldMetadata["name"].(*fieldmeta.FieldMetadata)
	require.True(t, ok)
	require.NotNil(t, leaf.Confidence)
	assert.InDelta(t, 0.95, *leaf.Confidence, 1e-9)
	require.Len(t, leaf.Citation, 1)
	assert.Equal(t, "John Doe", leaf.Citation[0].MatchingText)

	require.NotNil(t, got.OverallConfidence)
	assert.InDelta(t, (0.95+0.87+0.92)/3, *got.OverallConfidence, 1e-9)
}

func TestFromExtractionResultOverridesFile(t *testing.T) {
	run := extractRun(map[string]any{"name": "John Doe", "age": float64(30)}, resumeMetadata())

	got, err := FromExtractionResult[person](run, nil,
		WithFileID("custom-file-id"),
		WithFileName("custom-name.pdf"),
		WithMetadata(map[string]any{"source": "api_test"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "custom-file-id", got.FileID)
	assert.Equal(t, "custom-name.pdf", got.FileName)
	assert.Equal(t, "api_test", got.Metadata["source"])
	assert.Equal(t, "job-123", got.Metadata[MetadataJobID])
}

func TestFromExtractionResultRecordsFieldErrors(t *testing.T) {
	meta := resumeMetadata()
	meta["error"] = "could not extract phone"
	run := extractRun(map[string]any{"name": "John Doe", "age": float64(30)}, meta)

	got, err := FromExtractionResult[person](run, nil)
	require.NoError(t, err)
	assert.Equal(t, "could not extract phone", got.Metadata[MetadataFieldErrors])
	assert.NotContains(t, got.FieldMetadata, "error")
}

func TestFromExtractionResultInvalidData(t *testing.T) {
	raw := map[string]any{"missing_name": "Valid Name", "age": "not_a_number"}
	run := extractRun(raw, map[string]any{"name": map[string]any{"confidence": 0.9}})
	run.File = &client.File{ID: "error-file", Name: "bad_data.pdf"}

	_, err := FromExtractionResult[person](run, nil, WithMetadata(map[string]any{"test": "metadata"}))
	assert.ErrorIs(t, err, client.ErrValidation)

	var invalid *InvalidExtractionError
	require.ErrorAs(t, err, &invalid)
	item := invalid.Item
	assert.Equal(t, StatusError, item.Status)
	assert.Equal(t, raw, item.Data)
	assert.Equal(t, raw, item.OriginalData)
	assert.Equal(t, "error-file", item.FileID)
	assert.Equal(t, "bad_data.pdf", item.FileName)
	assert.Contains(t, item.Metadata, MetadataExtractionError)
	assert.Equal(t, "metadata", item.Metadata["test"])

	leaf, ok := item.FieldMetadata["name"].(*fieldmeta.FieldMetadata)
	require.True(t, ok)
	assert.InDelta(t, 0.9, *leaf.Confidence, 1e-9)
	require.NotNil(t, item.OverallConfidence)
	assert.InDelta(t, 0.9, *item.OverallConfidence, 1e-9)
}

func TestFromExtractionResultMissingField(t *testing.T) {
	raw := map[string]any{"missing_name": "Valid Name", "age": float64(30)}
	run := extractRun(raw, resumeMetadata())

	_, err := FromExtractionResult[person](run, nil)
	assert.ErrorIs(t, err, client.ErrValidation)
	assert.ErrorContains(t, err, "name")

	var invalid *InvalidExtractionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusError, invalid.Item.Status)
	assert.Equal(t, raw, invalid.Item.Data)
	assert.Contains(t, invalid.Item.Metadata, MetadataExtractionError)
}

func TestExtractedDataJSONRoundTrip(t *testing.T) {
	run := extractRun(map[string]any{"name": "John Doe", "age": float64(30)}, resumeMetadata())
	want, err := FromExtractionResult[person](run, nil)
	require.NoError(t, err)

	encoded, err := json.Marshal(want)
	require.NoError(t, err)

	var got ExtractedData[person]
	require.NoError(t, json.Unmarshal(encoded, &got))
	assert.Equal(t, want.Data, got.Data)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.FieldMetadata, got.FieldMetadata)
	assert.InDelta(t, *want.OverallConfidence, *got.OverallConfidence, 1e-9)
}

func TestStoreExtractedData(t *testing.T) {
	store := newMemoryStore()
	c, err := New[ExtractedData[person]](store, "dep", nil)
	require.NoError(t, err)

	run := extractRun(map[string]any{"name": "John Doe", "age": float64(30)}, resumeMetadata())
	extracted, err := FromExtractionResult[person](run, nil)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := c.Create(ctx, *extracted)
	require.NoError(t, err)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, extracted.Data, got.Data.Data)
	assert.Equal(t, extracted.FileID, got.Data.FileID)
	assert.Equal(t, extracted.FieldMetadata, got.Data.FieldMetadata)
}

func TestStoreExtractedDataKeepsReasoningOnlyLeaves(t *testing.T) {
	meta := resumeMetadata()
	meta["name"] = map[string]any{"citation": []any{}, "reasoning": "VERBATIM"}
	run := extractRun(map[string]any{"name": "John Doe", "age": float64(30)}, meta)
	extracted, err := FromExtractionResult[person](run, nil)
	require.NoError(t, err)

	c, err := New[ExtractedData[person]](newMemoryStore(), "dep", nil)
	require.NoError(t, err)
	ctx := context.Background()
	created, err := c.Create(ctx, *extracted)
	require.NoError(t, err)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	leaf, ok := got.Data.FieldMetadata["name"].(*fieldmeta.FieldMetadata)
	require.True(t, ok, "name should still be a leaf, got %T", got.Data.FieldMetadata["name"])
	assert.Equal(t, "VERBATIM", leaf.Reasoning)
	assert.Equal(t, extracted.FieldMetadata, got.Data.FieldMetadata)
}
