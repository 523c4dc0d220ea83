package client

import (
	"context"
	"fmt"
)

// CreateAgentData stores a new record.
func (c *client) CreateAgentData(ctx context.Context, req AgentDataCreate) (*AgentData, error) {
	if req.DeploymentName == "" {
		return nil, ErrEmptyDeploymentName
	}

	var item AgentData
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&item).
		Post(EndpointAgentData)
	if err := checkResponse(OperationCreateAgentData, resp, err); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetAgentData fetches one record. A missing record yields an error matching ErrNotFound.
func (c *client) GetAgentData(ctx context.Context, itemID string) (*AgentData, error) {
	if itemID == "" {
		return nil, ErrEmptyItemID
	}

	var item AgentData
	resp, err := c.newRequest(ctx).
		SetPathParam("item_id", itemID).
		SetResult(&item).
		Get(EndpointAgentDataItem)
	if err := checkResponse(OperationGetAgentData, resp, err); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateAgentData replaces the data of a record.
func (c *client) UpdateAgentData(ctx context.Context, itemID string, data map[string]any) (*AgentData, error) {
	if itemID == "" {
		return nil, ErrEmptyItemID
	}

	var item AgentData
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("item_id", itemID).
		SetBody(agentDataUpdate{Data: data}).
		SetResult(&item).
		Put(EndpointAgentDataItem)
	if err := checkResponse(OperationUpdateAgentData, resp, err); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteAgentData removes a record.
func (c *client) DeleteAgentData(ctx context.Context, itemID string) error {
	if itemID == "" {
		return ErrEmptyItemID
	}

	resp, err := c.newRequest(ctx).
		SetPathParam("item_id", itemID).
		Delete(EndpointAgentDataItem)
	return checkResponse(OperationDeleteAgentData, resp, err)
}

// SearchAgentData queries a collection.
func (c *client) SearchAgentData(ctx context.Context, req SearchRequest) (*AgentDataPage, error) {
	if req.DeploymentName == "" {
		return nil, ErrEmptyDeploymentName
	}
	if err := ValidateFilter(req.Filter); err != nil {
		return nil, err
	}

	var page AgentDataPage
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&page).
		Post(EndpointAgentDataSearch)
	if err := checkResponse(OperationSearchAgentData, resp, err); err != nil {
		return nil, err
	}
	return &page, nil
}

// AggregateAgentData groups a collection.
func (c *client) AggregateAgentData(ctx context.Context, req AggregateRequest) (*AggregatePage, error) {
	if req.DeploymentName == "" {
		return nil, ErrEmptyDeploymentName
	}
	if err := ValidateFilter(req.Filter); err != nil {
		return nil, err
	}

	var page AggregatePage
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&page).
		Post(EndpointAgentDataAggregate)
	if err := checkResponse(OperationAggregateData, resp, err); err != nil {
		return nil, err
	}
	return &page, nil
}

// ValidateFilter rejects operators the search API does not understand.
func ValidateFilter(filter Filter) error {
	for field, ops := range filter {
		for op := range ops {
			if !op.Valid() {
				return fmt.Errorf("%w %q on field %q", ErrInvalidFilter, op, field)
			}
		}
	}
	return nil
}
