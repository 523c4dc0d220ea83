// Package agentdata is a typed view over the schemaless agent data API.
// Records are validated into a Go type on read and encoded from it on write.
package agentdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
)

const (
	DefaultCollection = "default"
	// EnvDeploymentName is consulted when New is given an empty deployment name.
	EnvDeploymentName = "LLAMA_DEPLOY_DEPLOYMENT_NAME"
)

// TypedAgentData is a stored record whose data decoded into T.
type TypedAgentData[T any] struct {
	ID             string     `json:"id"`
	DeploymentName string     `json:"deployment_name"`
	Collection     string     `json:"collection,omitempty"`
	Data           T          `json:"data"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Page is one page of results. Total is set only when requested; pass
// NextPageToken back as SearchOptions.PageToken to continue.
type Page[T any] struct {
	Items         []T    `json:"items"`
	Total         *int   `json:"total,omitempty"`
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// AggregateGroup is one group of an aggregation with its first item decoded into T.
type AggregateGroup[T any] struct {
	GroupKey  map[string]any `json:"group_key"`
	Count     *int           `json:"count,omitempty"`
	FirstItem *T             `json:"first_item,omitempty"`
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Filter       client.Filter
	OrderBy      string
	Offset       int
	PageSize     int
	PageToken    string
	IncludeTotal bool
}

// AggregateOptions configures an aggregation.
type AggregateOptions struct {
	Filter    client.Filter
	GroupBy   []string
	Count     bool
	First     bool
	OrderBy   string
	Offset    int
	PageSize  int
	PageToken string
}

// Client reads and writes records of type T in one collection of a deployment.
type Client[T any] struct {
	api            client.AgentDataStore
	schema         *Schema[T]
	deploymentName string
	collection     string
	logger         *zap.Logger
}

type options struct {
	collection string
	logger     *zap.Logger
}

// Option configures New.
type Option func(*options)

// WithCollection selects the collection. Empty names are ignored.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds a typed client. A nil schema decodes T by json tags alone.
func New[T any](api client.AgentDataStore, deploymentName string, schema *Schema[T], opts ...Option) (*Client[T], error) {
	if api == nil {
		return nil, errors.New("agent data api cannot be nil")
	}
	if deploymentName == "" {
		deploymentName = os.Getenv(EnvDeploymentName)
	}
	if deploymentName == "" {
		return nil, client.ErrEmptyDeploymentName
	}
	if schema == nil {
		schema = &Schema[T]{}
	}

	o := options{collection: DefaultCollection, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client[T]{
		api:            api,
		schema:         schema,
		deploymentName: deploymentName,
		collection:     o.collection,
		logger:         o.logger,
	}, nil
}

// DeploymentName returns the deployment the client is bound to.
func (c *Client[T]) DeploymentName() string { return c.deploymentName }

// Collection returns the collection the client is bound to.
func (c *Client[T]) Collection() string { return c.collection }

// Create stores data as a new record.
func (c *Client[T]) Create(ctx context.Context, data T) (*TypedAgentData[T], error) {
	raw, err := c.schema.Encode(data)
	if err != nil {
		return nil, err
	}

	item, err := c.api.CreateAgentData(ctx, client.AgentDataCreate{
		DeploymentName: c.deploymentName,
		Collection:     c.collection,
		Data:           raw,
	})
	if err != nil {
		return nil, err
	}
	return c.typed(item)
}

// Get fetches a record and decodes it into T.
func (c *Client[T]) Get(ctx context.Context, id string) (*TypedAgentData[T], error) {
	item, err := c.api.GetAgentData(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.typed(item)
}

// UntypedGet fetches a record without failing on schema mismatch. Valid data
// is returned in its normalized form, invalid data as stored.
func (c *Client[T]) UntypedGet(ctx context.Context, id string) (*TypedAgentData[map[string]any], error) {
	item, err := c.api.GetAgentData(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.untyped(item), nil
}

// Update replaces the data of a record.
func (c *Client[T]) Update(ctx context.Context, id string, data T) (*TypedAgentData[T], error) {
	raw, err := c.schema.Encode(data)
	if err != nil {
		return nil, err
	}

	item, err := c.api.UpdateAgentData(ctx, id, raw)
	if err != nil {
		return nil, err
	}
	return c.typed(item)
}

// Delete removes a record.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteAgentData(ctx, id); err != nil {
		return fmt.Errorf("delete agent data %s: %w", id, err)
	}
	return nil
}

// Search returns one page of records decoded into T. A record that does not
// match the schema fails the whole call; use UntypedSearch to tolerate it.
func (c *Client[T]) Search(ctx context.Context, opts SearchOptions) (*Page[TypedAgentData[T]], error) {
	page, err := c.search(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := &Page[TypedAgentData[T]]{Total: page.TotalSize, HasMore: page.HasMore(), NextPageToken: page.NextPageToken}
	for i := range page.Items {
		item, err := c.typed(&page.Items[i])
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *item)
	}
	return out, nil
}

// UntypedSearch returns one page of records as JSON objects.
func (c *Client[T]) UntypedSearch(ctx context.Context, opts SearchOptions) (*Page[TypedAgentData[map[string]any]], error) {
	page, err := c.search(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := &Page[TypedAgentData[map[string]any]]{Total: page.TotalSize, HasMore: page.HasMore(), NextPageToken: page.NextPageToken}
	for i := range page.Items {
		out.Items = append(out.Items, *c.untyped(&page.Items[i]))
	}
	return out, nil
}

// SearchAll follows pages until the result set is exhausted.
func (c *Client[T]) SearchAll(ctx context.Context, opts SearchOptions) ([]TypedAgentData[T], error) {
	var out []TypedAgentData[T]
	for {
		page, err := c.search(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			item, err := c.typed(&page.Items[i])
			if err != nil {
				return nil, err
			}
			out = append(out, *item)
		}
		if !page.HasMore() {
			return out, nil
		}
		opts.PageToken = page.NextPageToken
	}
}

// Aggregate groups records, decoding each group's first item into T.
func (c *Client[T]) Aggregate(ctx context.Context, opts AggregateOptions) (*Page[AggregateGroup[T]], error) {
	page, err := c.aggregate(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := &Page[AggregateGroup[T]]{Total: page.TotalSize, HasMore: page.HasMore(), NextPageToken: page.NextPageToken}
	for _, g := range page.Items {
		group := AggregateGroup[T]{GroupKey: g.GroupKey, Count: g.Count}
		if g.FirstItem != nil {
			first, err := c.schema.Validate(g.FirstItem)
			if err != nil {
				return nil, err
			}
			group.FirstItem = &first
		}
		out.Items = append(out.Items, group)
	}
	return out, nil
}

// UntypedAggregate groups records, keeping first items as JSON objects.
func (c *Client[T]) UntypedAggregate(ctx context.Context, opts AggregateOptions) (*Page[AggregateGroup[map[string]any]], error) {
	page, err := c.aggregate(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := &Page[AggregateGroup[map[string]any]]{Total: page.TotalSize, HasMore: page.HasMore(), NextPageToken: page.NextPageToken}
	for _, g := range page.Items {
		group := AggregateGroup[map[string]any]{GroupKey: g.GroupKey, Count: g.Count}
		if g.FirstItem != nil {
			first := c.schema.decode(g.FirstItem).normalized(c.schema)
			group.FirstItem = &first
		}
		out.Items = append(out.Items, group)
	}
	return out, nil
}

func (c *Client[T]) search(ctx context.Context, opts SearchOptions) (*client.AgentDataPage, error) {
	return c.api.SearchAgentData(ctx, client.SearchRequest{
		DeploymentName: c.deploymentName,
		Collection:     c.collection,
		Filter:         opts.Filter,
		OrderBy:        opts.OrderBy,
		Offset:         opts.Offset,
		PageSize:       opts.PageSize,
		PageToken:      opts.PageToken,
		IncludeTotal:   opts.IncludeTotal,
	})
}

func (c *Client[T]) aggregate(ctx context.Context, opts AggregateOptions) (*client.AggregatePage, error) {
	return c.api.AggregateAgentData(ctx, client.AggregateRequest{
		DeploymentName: c.deploymentName,
		Collection:     c.collection,
		Filter:         opts.Filter,
		GroupBy:        opts.GroupBy,
		Count:          opts.Count,
		First:          opts.First,
		OrderBy:        opts.OrderBy,
		Offset:         opts.Offset,
		PageSize:       opts.PageSize,
		PageToken:      opts.PageToken,
	})
}

func (c *Client[T]) typed(item *client.AgentData) (*TypedAgentData[T], error) {
	p := c.schema.decode(item.Data)
	if !p.valid() {
		c.logger.Debug("agent data failed validation", zap.String("id", item.ID), zap.Error(p.err))
		return nil, fmt.Errorf("agent data %s: %w", item.ID, p.err)
	}
	return &TypedAgentData[T]{
		ID:             item.ID,
		DeploymentName: item.DeploymentName,
		Collection:     item.Collection,
		Data:           p.typed,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}, nil
}

func (c *Client[T]) untyped(item *client.AgentData) *TypedAgentData[map[string]any] {
	return &TypedAgentData[map[string]any]{
		ID:             item.ID,
		DeploymentName: item.DeploymentName,
		Collection:     item.Collection,
		Data:           c.schema.decode(item.Data).normalized(c.schema),
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}
