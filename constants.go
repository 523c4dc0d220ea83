package client

import "time"

const (
	ServiceName         = "llamacloud"
	DefaultBaseURL      = "https://api.cloud.llamaindex.ai"
	EUBaseURL           = "https://api.cloud.eu.llamaindex.ai"
	DefaultTimeout      = 60 * time.Second
	ProcessingTimeout   = 30 * time.Minute
	DefaultPollInterval = time.Second
	DefaultConcurrency  = 10
	APIVersion          = "v1"
	RequestIDHeader     = "X-Request-ID"
)

// Environment variables consulted when the matching option is not provided.
const (
	EnvAPIKey         = "LLAMA_CLOUD_API_KEY"
	EnvBaseURL        = "LLAMA_CLOUD_BASE_URL"
	EnvProjectID      = "LLAMA_CLOUD_PROJECT_ID"
	EnvOrganizationID = "LLAMA_CLOUD_ORGANIZATION_ID"
)

const (
	queryProjectID      = "project_id"
	queryOrganizationID = "organization_id"
)

// API endpoints
const (
	apiPrefix = "/api/" + APIVersion

	EndpointFiles       = apiPrefix + "/files"
	EndpointFile        = apiPrefix + "/files/{file_id}"
	EndpointFileContent = apiPrefix + "/files/{file_id}/content"

	EndpointParseUpload = apiPrefix + "/parsing/upload"
	EndpointParseJob    = apiPrefix + "/parsing/job/{job_id}"
	EndpointParseResult = apiPrefix + "/parsing/job/{job_id}/result/json"

	EndpointExtractStateless = apiPrefix + "/extraction/run"
	EndpointExtractJobs      = apiPrefix + "/extraction/jobs"
	EndpointExtractJob       = apiPrefix + "/extraction/jobs/{job_id}"
	EndpointExtractRunByJob  = apiPrefix + "/extraction/runs/by-job/{job_id}"

	EndpointClassifyJobs    = apiPrefix + "/classifier/jobs"
	EndpointClassifyJob     = apiPrefix + "/classifier/jobs/{job_id}"
	EndpointClassifyResults = apiPrefix + "/classifier/jobs/{job_id}/results"

	EndpointSheetsJobs         = apiPrefix + "/beta/sheets/jobs"
	EndpointSheetsJob          = apiPrefix + "/beta/sheets/jobs/{job_id}"
	EndpointSheetsRegionResult = apiPrefix + "/beta/sheets/jobs/{job_id}/regions/{region_id}/result/{region_type}"

	EndpointAgentData          = apiPrefix + "/beta/agent-data"
	EndpointAgentDataItem      = apiPrefix + "/beta/agent-data/{item_id}"
	EndpointAgentDataSearch    = apiPrefix + "/beta/agent-data/:search"
	EndpointAgentDataAggregate = apiPrefix + "/beta/agent-data/:aggregate"
)
