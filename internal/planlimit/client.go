package planlimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Decision 配额检查结果
type Decision struct {
	Allowed bool   `json:"allowed"`
	Limit   int    `json:"limit"`
	Current int    `json:"current"`
	Reason  string `json:"reason,omitempty"`
}

// Checker 套餐配额检查接口
// 表对外公开前检查租户的公开表配额
type Checker interface {
	CheckPublicTables(ctx context.Context, tenantID string, current int) (*Decision, error)
}

// checkRequest 配额检查请求
type checkRequest struct {
	TenantID string `json:"tenantId"`
	Metric   string `json:"metric"`
	Current  int    `json:"current"`
}

// checkResponse 配额检查响应
type checkResponse struct {
	Status int      `json:"status"`
	Msg    string   `json:"msg"`
	Data   Decision `json:"data"`
}

// Client 套餐配额服务客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建配额服务客户端
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

var _ Checker = (*Client)(nil)

// CheckPublicTables 检查租户是否还能公开新表
func (c *Client) CheckPublicTables(ctx context.Context, tenantID string, current int) (*Decision, error) {
	request := checkRequest{
		TenantID: tenantID,
		Metric:   "public_tables",
		Current:  current,
	}

	var response checkResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/plan/check")

	if err != nil {
		c.logger.Error("plan limit API call failed",
			zap.Error(err),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("failed to call plan limit API: %w", err)
	}

	if response.Status != 0 {
		c.logger.Error("plan limit API returned error",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return nil, fmt.Errorf("plan limit API error: %s (status: %d)", response.Msg, response.Status)
	}

	return &response.Data, nil
}

// StaticChecker 不接配额服务时的本地检查器
// limit<=0表示不限制
type StaticChecker struct {
	Limit int
}

var _ Checker = (*StaticChecker)(nil)

// CheckPublicTables 按固定上限检查
func (s *StaticChecker) CheckPublicTables(_ context.Context, _ string, current int) (*Decision, error) {
	if s.Limit <= 0 {
		return &Decision{Allowed: true, Limit: 0, Current: current}, nil
	}
	if current >= s.Limit {
		return &Decision{
			Allowed: false,
			Limit:   s.Limit,
			Current: current,
			Reason:  fmt.Sprintf("public table limit reached (%d of %d)", current, s.Limit),
		}, nil
	}
	return &Decision{Allowed: true, Limit: s.Limit, Current: current}, nil
}
