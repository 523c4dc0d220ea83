package client

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type client struct {
	restyClient       *resty.Client
	transferClient    *resty.Client
	apiKey            string
	baseURL           string
	projectID         string
	organizationID    string
	timeout           time.Duration
	processingTimeout time.Duration
	pollInterval      time.Duration
	concurrency       int
	presignedUploads  bool
	terminal          func(JobStatus) bool
	limiter           *rate.Limiter
	logger            *zap.Logger
	clock             Clock
}

var _ Client = (*client)(nil)

type Option func(*client)

// WithBaseURL overrides the API host, e.g. EUBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(c *client) {
		c.apiKey = apiKey
	}
}

// WithProject scopes every call to a project and, optionally, an organization.
func WithProject(projectID, organizationID string) Option {
	return func(c *client) {
		c.projectID = projectID
		c.organizationID = organizationID
	}
}

// WithRestyClient allows callers to provide a preconfigured API client.
func WithRestyClient(restyClient *resty.Client) Option {
	return func(c *client) {
		if restyClient != nil {
			c.restyClient = restyClient
		}
	}
}

// WithTransferClient overrides the client used for presigned uploads and downloads.
func WithTransferClient(transfer *resty.Client) Option {
	return func(c *client) {
		if transfer != nil {
			c.transferClient = transfer
		}
	}
}

// WithProcessingTimeout customizes the maximum wait time for long-running operations.
func WithProcessingTimeout(timeout time.Duration) Option {
	return func(c *client) {
		if timeout > 0 {
			c.processingTimeout = timeout
		}
	}
}

// WithPollInterval sets the delay between job status checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithConcurrency bounds the batch helpers (ParseFiles, ExtractFiles, ...).
func WithConcurrency(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPresignedUploads selects between presigned (default) and direct multipart uploads.
func WithPresignedUploads(enabled bool) Option {
	return func(c *client) {
		c.presignedUploads = enabled
	}
}

// WithTerminalStatuses replaces the default terminal-status predicate.
func WithTerminalStatuses(statuses ...JobStatus) Option {
	return func(c *client) {
		if len(statuses) == 0 {
			return
		}
		set := make(map[JobStatus]struct{}, len(statuses))
		for _, s := range statuses {
			set[s] = struct{}{}
		}
		c.terminal = func(s JobStatus) bool {
			_, ok := set[s]
			return ok
		}
	}
}

// WithRateLimit caps outgoing API requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *client) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock used by polling.
func WithClock(clock Clock) Option {
	return func(c *client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient builds a client. The API key, base URL and project scope fall back
// to LLAMA_CLOUD_* environment variables when not passed as options.
func NewClient(opts ...Option) (Client, error) {
	c := &client{
		processingTimeout: ProcessingTimeout,
		pollInterval:      DefaultPollInterval,
		concurrency:       DefaultConcurrency,
		presignedUploads:  true,
		terminal:          IsTerminalStatus,
		logger:            zap.NewNop(),
		clock:             realClock{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv(EnvAPIKey)
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if c.baseURL == "" {
		c.baseURL = os.Getenv(EnvBaseURL)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.projectID == "" {
		c.projectID = os.Getenv(EnvProjectID)
	}
	if c.organizationID == "" {
		c.organizationID = os.Getenv(EnvOrganizationID)
	}

	if c.restyClient == nil {
		c.restyClient = newDefaultAPIClient()
	}
	c.restyClient.
		SetBaseURL(strings.TrimRight(c.baseURL, "/")).
		SetAuthToken(c.apiKey).
		OnBeforeRequest(c.beforeRequest)
	if c.timeout > 0 {
		c.restyClient.SetTimeout(c.timeout)
	}

	if c.transferClient == nil {
		c.transferClient = newTransferClient(c.processingTimeout)
	}

	return c, nil
}

// Name returns the service name.
func (c *client) Name() string {
	return ServiceName
}

// Version returns the API version.
func (c *client) Version() string {
	return APIVersion
}

// beforeRequest tags each request with an id and waits on the rate limiter.
func (c *client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.SetHeader(RequestIDHeader, uuid.NewString())
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return err
		}
	}
	return nil
}

// newRequest starts an API request scoped to the configured project.
func (c *client) newRequest(ctx context.Context) *resty.Request {
	req := c.restyClient.R().SetContext(ctx)
	if c.projectID != "" {
		req.SetQueryParam(queryProjectID, c.projectID)
	}
	if c.organizationID != "" {
		req.SetQueryParam(queryOrganizationID, c.organizationID)
	}
	return req
}

func newDefaultAPIClient() *resty.Client {
	return resty.New().
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryIdempotent)
}

func newTransferClient(timeout time.Duration) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryIdempotent)

	return client
}

// retryIdempotent retries GET and PUT requests on throttling and server errors.
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodPut:
	default:
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
