package client

import (
	"strings"
	"time"
)

// JobStatus enumerates the states reported by every job-backed capability.
type JobStatus string

const (
	StatusPending        JobStatus = "PENDING"
	StatusSuccess        JobStatus = "SUCCESS"
	StatusPartialSuccess JobStatus = "PARTIAL_SUCCESS"
	StatusError          JobStatus = "ERROR"
	StatusCancelled      JobStatus = "CANCELLED"
)

// Known reports whether s is one of the documented statuses.
func (s JobStatus) Known() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusPartialSuccess, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus is the default terminal-status predicate.
func IsTerminalStatus(s JobStatus) bool {
	switch s {
	case StatusSuccess, StatusPartialSuccess, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Operation names an API call or long-running task in errors and logs.
type Operation string

const (
	OperationParsing        Operation = "parsing"
	OperationExtraction     Operation = "extraction"
	OperationClassification Operation = "classification"
	OperationSheets         Operation = "sheets extraction"

	OperationPresignUpload    Operation = "presign upload"
	OperationPresignedPut     Operation = "upload to presigned URL"
	OperationDirectUpload     Operation = "direct upload"
	OperationGetFile          Operation = "get file"
	OperationFileContentURL   Operation = "get file content url"
	OperationDownload         Operation = "download"
	OperationSubmitParse      Operation = "submit parse job"
	OperationGetParseJob      Operation = "get parse job"
	OperationGetParseResult   Operation = "get parse result"
	OperationSubmitExtraction Operation = "submit extraction"
	OperationGetExtractJob    Operation = "get extraction job"
	OperationGetExtractRun    Operation = "get extraction run"
	OperationSubmitClassify   Operation = "submit classify job"
	OperationGetClassifyJob   Operation = "get classify job"
	OperationGetClassifyRes   Operation = "get classify results"
	OperationSubmitSheets     Operation = "submit sheets job"
	OperationGetSheetsJob     Operation = "get sheets job"
	OperationGetSheetsRegion  Operation = "get sheets region"
	OperationCreateAgentData  Operation = "create agent data"
	OperationGetAgentData     Operation = "get agent data"
	OperationUpdateAgentData  Operation = "update agent data"
	OperationDeleteAgentData  Operation = "delete agent data"
	OperationSearchAgentData  Operation = "search agent data"
	OperationAggregateData    Operation = "aggregate agent data"
)

// Job holds the fields every job-status payload shares.
type Job struct {
	ID           string     `json:"id"`
	Status       JobStatus  `json:"status"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// GetID returns the job id.
func (j Job) GetID() string { return j.ID }

// GetStatus returns the job status.
func (j Job) GetStatus() JobStatus { return j.Status }

// File is a stored file record.
type File struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ExternalFileID string     `json:"external_file_id,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	FileSize       *int64     `json:"file_size,omitempty"`
	FileType       string     `json:"file_type,omitempty"`
	DataSourceID   string     `json:"data_source_id,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type fileCreateRequest struct {
	Name           string `json:"name"`
	ExternalFileID string `json:"external_file_id,omitempty"`
	FileSize       int64  `json:"file_size,omitempty"`
}

type presignedUploadResponse struct {
	URL       string     `json:"url"`
	FileID    string     `json:"file_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type presignedURLResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FileInput names where a document comes from. Exactly one of Path, Data or
// FileID must be set. Name labels Data uploads and defaults to the base name of Path.
type FileInput struct {
	Path   string
	Data   []byte
	Name   string
	FileID string
}

func (in FileInput) sources() int {
	n := 0
	if in.Path != "" {
		n++
	}
	if len(in.Data) > 0 {
		n++
	}
	if in.FileID != "" {
		n++
	}
	return n
}

// DisplayName is the best human-readable label for the input.
func (in FileInput) DisplayName() string {
	switch {
	case in.Name != "":
		return in.Name
	case in.Path != "":
		return in.Path
	default:
		return in.FileID
	}
}

// ParseRequest describes a parse job. InputURL may replace File.
type ParseRequest struct {
	File        FileInput
	InputURL    string
	TargetPages string
	Language    string
	ParseMode   string
	// Options carries any further multipart form fields accepted by the upload endpoint.
	Options map[string]string
}

func (r ParseRequest) formData() map[string]string {
	form := make(map[string]string, len(r.Options)+4)
	for k, v := range r.Options {
		form[k] = v
	}
	if r.TargetPages != "" {
		form["target_pages"] = r.TargetPages
	}
	if r.Language != "" {
		form["language"] = r.Language
	}
	if r.ParseMode != "" {
		form["parse_mode"] = r.ParseMode
	}
	if r.InputURL != "" {
		form["input_url"] = r.InputURL
	}
	if r.File.FileID != "" {
		form["file_id"] = r.File.FileID
	}
	return form
}

// ParseJob is the parse job status payload.
type ParseJob struct {
	Job
	ErrorCode string `json:"error_code,omitempty"`
}

// ParseImage is an image found on a parsed page.
type ParseImage struct {
	Name   string  `json:"name"`
	Height float64 `json:"height,omitempty"`
	Width  float64 `json:"width,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Type   string  `json:"type,omitempty"`
}

// ParsePage is one page of a parse result.
type ParsePage struct {
	Page   int          `json:"page"`
	Text   string       `json:"text"`
	MD     string       `json:"md"`
	Images []ParseImage `json:"images,omitempty"`
	Width  float64      `json:"width,omitempty"`
	Height float64      `json:"height,omitempty"`
}

// ParseResult is the JSON result of a parse job.
type ParseResult struct {
	JobID       string         `json:"job_id,omitempty"`
	FileName    string         `json:"file_name,omitempty"`
	Pages       []ParsePage    `json:"pages"`
	JobMetadata map[string]any `json:"job_metadata,omitempty"`
}

// Markdown joins the markdown of every page.
func (r *ParseResult) Markdown() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.MD)
	}
	return strings.Join(parts, "\n\n")
}

// ExtractMode selects the extraction quality tier.
type ExtractMode string

const (
	ExtractModeFast       ExtractMode = "FAST"
	ExtractModeBalanced   ExtractMode = "BALANCED"
	ExtractModePremium    ExtractMode = "PREMIUM"
	ExtractModeMultimodal ExtractMode = "MULTIMODAL"
)

// ExtractConfig tunes an extraction.
type ExtractConfig struct {
	ExtractionMode   ExtractMode `json:"extraction_mode,omitempty" yaml:"extraction_mode"`
	ExtractionTarget string      `json:"extraction_target,omitempty" yaml:"extraction_target"`
	SystemPrompt     string      `json:"system_prompt,omitempty" yaml:"system_prompt"`
	UseReasoning     bool        `json:"use_reasoning,omitempty" yaml:"use_reasoning"`
	CiteSources      bool        `json:"cite_sources,omitempty" yaml:"cite_sources"`
	ConfidenceScores bool        `json:"confidence_scores,omitempty" yaml:"confidence_scores"`
}

// ExtractRequest describes one extraction. Setting AgentID runs a stored
// extraction agent; otherwise DataSchema is required.
type ExtractRequest struct {
	File       FileInput
	DataSchema map[string]any
	Config     ExtractConfig
	AgentID    string
}

type statelessExtractBody struct {
	DataSchema map[string]any `json:"data_schema"`
	Config     ExtractConfig  `json:"config"`
	FileID     string         `json:"file_id"`
}

type agentExtractBody struct {
	ExtractionAgentID string         `json:"extraction_agent_id"`
	FileID            string         `json:"file_id"`
	ConfigOverride    *ExtractConfig `json:"config_override,omitempty"`
}

// ExtractJob is the extraction job status payload.
type ExtractJob struct {
	Job
	Error string `json:"error,omitempty"`
	File  *File  `json:"file,omitempty"`
}

// ExtractRun holds the output of a finished extraction job.
type ExtractRun struct {
	ID                 string         `json:"id"`
	JobID              string         `json:"job_id,omitempty"`
	ExtractionAgentID  string         `json:"extraction_agent_id,omitempty"`
	Status             string         `json:"status,omitempty"`
	Data               map[string]any `json:"data"`
	ExtractionMetadata map[string]any `json:"extraction_metadata,omitempty"`
	DataSchema         map[string]any `json:"data_schema,omitempty"`
	File               *File          `json:"file,omitempty"`
	Error              string         `json:"error,omitempty"`
}

// FieldMetadata returns the raw per-field metadata of the run, if any.
func (r *ExtractRun) FieldMetadata() any {
	if r.ExtractionMetadata == nil {
		return nil
	}
	return r.ExtractionMetadata["field_metadata"]
}

// ClassifierRule maps a document type to a natural-language description.
type ClassifierRule struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// ClassifyParsingConfig limits how much of each file the classifier reads.
type ClassifyParsingConfig struct {
	Lang        string `json:"lang,omitempty" yaml:"lang"`
	MaxPages    *int   `json:"max_pages,omitempty" yaml:"max_pages"`
	TargetPages []int  `json:"target_pages,omitempty" yaml:"target_pages"`
}

type classifyJobBody struct {
	Rules         []ClassifierRule       `json:"rules"`
	FileIDs       []string               `json:"file_ids"`
	ParsingConfig *ClassifyParsingConfig `json:"parsing_configuration,omitempty"`
}

// ClassifyJob is the classify job status payload.
type ClassifyJob struct {
	Job
	Rules []ClassifierRule `json:"rules,omitempty"`
}

// ClassifyResult is the verdict for one file.
type ClassifyResult struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// FileClassification links a file to its verdict.
type FileClassification struct {
	ID            string          `json:"id,omitempty"`
	ClassifyJobID string          `json:"classify_job_id,omitempty"`
	FileID        string          `json:"file_id"`
	Result        *ClassifyResult `json:"result"`
}

// ClassifyJobResults lists the verdicts of a classify job.
type ClassifyJobResults struct {
	Items         []FileClassification `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
	TotalSize     *int                 `json:"total_size,omitempty"`
}

// ClassifiedFile pairs an uploaded file with its verdict.
type ClassifiedFile struct {
	Path           string              `json:"path"`
	File           *File               `json:"file"`
	Classification *FileClassification `json:"classification,omitempty"`
}

// FileFailure records a file that could not be processed.
type FileFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// ClassifyFilesResult is the outcome of classifying local files.
type ClassifyFilesResult struct {
	JobID         string           `json:"job_id"`
	Status        JobStatus        `json:"status"`
	Items         []ClassifiedFile `json:"items"`
	FailedUploads []FileFailure    `json:"failed_uploads,omitempty"`
}

// SheetsConfig tunes spreadsheet region extraction.
type SheetsConfig struct {
	SheetNames                 []string `json:"sheet_names,omitempty" yaml:"sheet_names"`
	IncludeHiddenCells         bool     `json:"include_hidden_cells,omitempty" yaml:"include_hidden_cells"`
	GenerateAdditionalMetadata bool     `json:"generate_additional_metadata,omitempty" yaml:"generate_additional_metadata"`
	UseExperimentalProcessing  bool     `json:"use_experimental_processing,omitempty" yaml:"use_experimental_processing"`
}

type sheetsJobBody struct {
	FileID string        `json:"file_id"`
	Config *SheetsConfig `json:"config,omitempty"`
}

// SheetRegion is one table or block detected in a spreadsheet.
type SheetRegion struct {
	RegionID    string `json:"region_id"`
	SheetName   string `json:"sheet_name"`
	RegionType  string `json:"region_type"`
	Location    string `json:"location"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// WorksheetMetadata describes one worksheet.
type WorksheetMetadata struct {
	SheetName   string `json:"sheet_name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SheetsJob is the sheets job payload. Regions are populated once results are requested.
type SheetsJob struct {
	Job
	FileID            string              `json:"file_id,omitempty"`
	Success           *bool               `json:"success,omitempty"`
	Regions           []SheetRegion       `json:"regions,omitempty"`
	WorksheetMetadata []WorksheetMetadata `json:"worksheet_metadata,omitempty"`
	Errors            []string            `json:"errors,omitempty"`
}

// AgentData is a stored JSON record.
type AgentData struct {
	ID             string         `json:"id,omitempty"`
	DeploymentName string         `json:"deployment_name"`
	Collection     string         `json:"collection,omitempty"`
	Data           map[string]any `json:"data"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// AgentDataCreate is the body of a create call.
type AgentDataCreate struct {
	DeploymentName string         `json:"deployment_name"`
	Collection     string         `json:"collection,omitempty"`
	Data           map[string]any `json:"data"`
}

type agentDataUpdate struct {
	Data map[string]any `json:"data"`
}

// FilterOperator is a comparison supported by agent data filters.
type FilterOperator string

const (
	FilterGT       FilterOperator = "gt"
	FilterGTE      FilterOperator = "gte"
	FilterLT       FilterOperator = "lt"
	FilterLTE      FilterOperator = "lte"
	FilterEQ       FilterOperator = "eq"
	FilterIncludes FilterOperator = "includes"
)

// Valid reports whether o is a supported operator.
func (o FilterOperator) Valid() bool {
	switch o {
	case FilterGT, FilterGTE, FilterLT, FilterLTE, FilterEQ, FilterIncludes:
		return true
	}
	return false
}

// FilterOperation maps operators to operands for one field, e.g. {"gte": 5}.
type FilterOperation map[FilterOperator]any

// Filter maps field names to their operations.
type Filter map[string]FilterOperation

// SearchRequest queries a collection.
type SearchRequest struct {
	DeploymentName string `json:"deployment_name"`
	Collection     string `json:"collection,omitempty"`
	Filter         Filter `json:"filter,omitempty"`
	OrderBy        string `json:"order_by,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	PageSize       int    `json:"page_size,omitempty"`
	PageToken      string `json:"page_token,omitempty"`
	IncludeTotal   bool   `json:"include_total,omitempty"`
}

// AggregateRequest groups a collection.
type AggregateRequest struct {
	DeploymentName string   `json:"deployment_name"`
	Collection     string   `json:"collection,omitempty"`
	Filter         Filter   `json:"filter,omitempty"`
	GroupBy        []string `json:"group_by,omitempty"`
	Count          bool     `json:"count,omitempty"`
	First          bool     `json:"first,omitempty"`
	OrderBy        string   `json:"order_by,omitempty"`
	Offset         int      `json:"offset,omitempty"`
	PageSize       int      `json:"page_size,omitempty"`
	PageToken      string   `json:"page_token,omitempty"`
}

// AgentDataPage is one page of search results.
type AgentDataPage struct {
	Items         []AgentData `json:"items"`
	TotalSize     *int        `json:"total_size,omitempty"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// HasMore reports whether another page exists.
func (p *AgentDataPage) HasMore() bool { return p.NextPageToken != "" }

// AggregateGroup is one group of an aggregation.
type AggregateGroup struct {
	GroupKey  map[string]any `json:"group_key"`
	Count     *int           `json:"count,omitempty"`
	FirstItem map[string]any `json:"first_item,omitempty"`
}

// AggregatePage is one page of aggregation results.
type AggregatePage struct {
	Items         []AggregateGroup `json:"items"`
	TotalSize     *int             `json:"total_size,omitempty"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// HasMore reports whether another page exists.
func (p *AggregatePage) HasMore() bool { return p.NextPageToken != "" }
