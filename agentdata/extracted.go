package agentdata

import (
	"errors"
	"fmt"
	"maps"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/fieldmeta"
)

// Review statuses of an extracted record. Other values are allowed.
const (
	StatusPendingReview = "pending_review"
	StatusAccepted      = "accepted"
	StatusRejected      = "rejected"
	StatusError         = "error"
)

// Metadata keys set by FromExtractionResult.
const (
	MetadataJobID           = "job_id"
	MetadataFieldErrors     = "field_errors"
	MetadataExtractionError = "extraction_error"
)

// ExtractedData tracks an extraction through review. OriginalData is the
// snapshot taken at extraction time; Data is the current, possibly edited, state.
type ExtractedData[T any] struct {
	OriginalData      T                `json:"original_data"`
	Data              T                `json:"data"`
	Status            string           `json:"status"`
	FieldMetadata     fieldmeta.Branch `json:"field_metadata,omitempty"`
	OverallConfidence *float64         `json:"overall_confidence,omitempty"`
	FileID            string           `json:"file_id,omitempty"`
	FileName          string           `json:"file_name,omitempty"`
	FileHash          string           `json:"file_hash,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
}

type extractedConfig struct {
	status        string
	fieldMetadata fieldmeta.Branch
	fileID        string
	fileName      string
	fileHash      string
	metadata      map[string]any
}

// ExtractedOption configures NewExtractedData and FromExtractionResult.
type ExtractedOption func(*extractedConfig)

func WithStatus(status string) ExtractedOption {
	return func(c *extractedConfig) { c.status = status }
}

func WithFieldMetadata(tree fieldmeta.Branch) ExtractedOption {
	return func(c *extractedConfig) { c.fieldMetadata = tree }
}

func WithFileID(id string) ExtractedOption {
	return func(c *extractedConfig) { c.fileID = id }
}

func WithFileName(name string) ExtractedOption {
	return func(c *extractedConfig) { c.fileName = name }
}

func WithFileHash(hash string) ExtractedOption {
	return func(c *extractedConfig) { c.fileHash = hash }
}

// WithMetadata merges entries into the record metadata.
func WithMetadata(metadata map[string]any) ExtractedOption {
	return func(c *extractedConfig) {
		if c.metadata == nil {
			c.metadata = map[string]any{}
		}
		maps.Copy(c.metadata, metadata)
	}
}

func newExtractedConfig(opts []ExtractedOption) extractedConfig {
	cfg := extractedConfig{status: StatusPendingReview}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metadata == nil {
		cfg.metadata = map[string]any{}
	}
	return cfg
}

// NewExtractedData wraps data as a fresh extraction awaiting review.
func NewExtractedData[T any](data T, opts ...ExtractedOption) *ExtractedData[T] {
	cfg := newExtractedConfig(opts)
	return newExtracted(data, cfg)
}

func newExtracted[T any](data T, cfg extractedConfig) *ExtractedData[T] {
	return &ExtractedData[T]{
		OriginalData:      data,
		Data:              data,
		Status:            cfg.status,
		FieldMetadata:     cfg.fieldMetadata,
		OverallConfidence: fieldmeta.OverallConfidence(cfg.fieldMetadata),
		FileID:            cfg.fileID,
		FileName:          cfg.fileName,
		FileHash:          cfg.fileHash,
		Metadata:          cfg.metadata,
	}
}

// InvalidExtractionError is returned when an extraction result does not match
// the record type. Item keeps the raw data with status error so it can still
// be stored for review.
type InvalidExtractionError struct {
	Item *ExtractedData[map[string]any]
	Err  error
}

func (e *InvalidExtractionError) Error() string {
	return fmt.Sprintf("invalid extraction result: %v", e.Err)
}

func (e *InvalidExtractionError) Unwrap() error { return e.Err }

// FromExtractionResult builds a reviewable record from a finished extraction.
// Field metadata is parsed before the data is validated, so it survives on the
// error item of an *InvalidExtractionError.
func FromExtractionResult[T any](run *client.ExtractRun, schema *Schema[T], opts ...ExtractedOption) (*ExtractedData[T], error) {
	if run == nil {
		return nil, errors.New("extraction run cannot be nil")
	}
	if schema == nil {
		schema = &Schema[T]{}
	}

	cfg := extractedConfig{status: StatusPendingReview}
	if run.File != nil {
		cfg.fileID = run.File.ID
		cfg.fileName = run.File.Name
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metadata == nil {
		cfg.metadata = map[string]any{}
	}
	if run.JobID != "" {
		cfg.metadata[MetadataJobID] = run.JobID
	}

	raw := run.FieldMetadata()
	if cfg.fieldMetadata == nil {
		tree, err := fieldmeta.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse field metadata: %w", err)
		}
		cfg.fieldMetadata = tree
	}
	if msg, ok := fieldmeta.FieldErrors(raw); ok {
		cfg.metadata[MetadataFieldErrors] = msg
	}

	data, err := schema.Validate(run.Data)
	if err != nil {
		cfg.status = StatusError
		cfg.metadata[MetadataExtractionError] = err.Error()
		return nil, &InvalidExtractionError{Item: newExtracted(run.Data, cfg), Err: err}
	}
	return newExtracted(data, cfg), nil
}
