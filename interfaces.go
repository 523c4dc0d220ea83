package client

import (
	"context"
	"io"

	"github.com/hsn0918/llamacloud-client/batch"
)

// Info provides metadata about the client
type Info interface {
	Name() string
	Version() string
}

// FileTransfer handles file storage operations
type FileTransfer interface {
	UploadFile(ctx context.Context, path, externalID string) (*File, error)
	UploadBytes(ctx context.Context, data []byte, externalID string) (*File, error)
	UploadReader(ctx context.Context, r io.Reader, name, externalID string, size int64) (*File, error)
	GetFile(ctx context.Context, fileID string) (*File, error)
	ReadFileContent(ctx context.Context, fileID string) ([]byte, error)
	ReadFileContentTo(ctx context.Context, fileID string, dst io.Writer) error
	DownloadURL(ctx context.Context, url string) ([]byte, error)
	DownloadURLTo(ctx context.Context, url string, dst io.Writer) error
}

// Parser handles document parsing operations
type Parser interface {
	SubmitParseJob(ctx context.Context, req ParseRequest) (*ParseJob, error)
	GetParseJob(ctx context.Context, jobID string) (*ParseJob, error)
	WaitForParseJob(ctx context.Context, jobID string) (*ParseJob, error)
	GetParseResult(ctx context.Context, jobID string) (*ParseResult, error)
	Parse(ctx context.Context, req ParseRequest) (*ParseResult, error)
	ParseFiles(ctx context.Context, template ParseRequest, paths []string, opts ...batch.Option) []batch.Outcome[string, *ParseResult]
	ParseSplit(ctx context.Context, req ParseRequest, pagesPerJob int, opts ...batch.Option) (*ParseResult, error)
}

// Extractor handles structured extraction operations
type Extractor interface {
	SubmitExtraction(ctx context.Context, req ExtractRequest) (*ExtractJob, error)
	SubmitAgentExtraction(ctx context.Context, req ExtractRequest) (*ExtractJob, error)
	GetExtractJob(ctx context.Context, jobID string) (*ExtractJob, error)
	WaitForExtractJob(ctx context.Context, jobID string) (*ExtractJob, error)
	GetExtractRun(ctx context.Context, jobID string) (*ExtractRun, error)
	Extract(ctx context.Context, req ExtractRequest) (*ExtractRun, error)
	ExtractFiles(ctx context.Context, template ExtractRequest, paths []string, opts ...batch.Option) []batch.Outcome[string, *ExtractRun]
}

// Classifier handles document classification operations
type Classifier interface {
	SubmitClassifyJob(ctx context.Context, rules []ClassifierRule, fileIDs []string, cfg *ClassifyParsingConfig) (*ClassifyJob, error)
	GetClassifyJob(ctx context.Context, jobID string) (*ClassifyJob, error)
	WaitForClassifyJob(ctx context.Context, jobID string, raiseOnError bool) (*ClassifyJob, error)
	GetClassifyResults(ctx context.Context, jobID string) (*ClassifyJobResults, error)
	ClassifyFileIDs(ctx context.Context, rules []ClassifierRule, fileIDs []string, cfg *ClassifyParsingConfig, raiseOnError bool) (*ClassifyJobResults, error)
	ClassifyFilePaths(ctx context.Context, rules []ClassifierRule, paths []string, cfg *ClassifyParsingConfig, raiseOnError bool, opts ...batch.Option) (*ClassifyFilesResult, error)
}

// SheetsExtractor handles spreadsheet region extraction
type SheetsExtractor interface {
	SubmitSheetsJob(ctx context.Context, fileID string, cfg *SheetsConfig) (*SheetsJob, error)
	GetSheetsJob(ctx context.Context, jobID string, includeResults bool) (*SheetsJob, error)
	WaitForSheetsJob(ctx context.Context, jobID string) (*SheetsJob, error)
	ExtractRegions(ctx context.Context, in FileInput, cfg *SheetsConfig) (*SheetsJob, error)
	DownloadRegion(ctx context.Context, jobID string, region SheetRegion) ([]byte, error)
}

// AgentDataStore is the schemaless record API wrapped by package agentdata.
type AgentDataStore interface {
	CreateAgentData(ctx context.Context, req AgentDataCreate) (*AgentData, error)
	GetAgentData(ctx context.Context, itemID string) (*AgentData, error)
	UpdateAgentData(ctx context.Context, itemID string, data map[string]any) (*AgentData, error)
	DeleteAgentData(ctx context.Context, itemID string) error
	SearchAgentData(ctx context.Context, req SearchRequest) (*AgentDataPage, error)
	AggregateAgentData(ctx context.Context, req AggregateRequest) (*AggregatePage, error)
}

// Client combines all cloud operations
type Client interface {
	Info
	FileTransfer
	Parser
	Extractor
	Classifier
	SheetsExtractor
	AgentDataStore
}
