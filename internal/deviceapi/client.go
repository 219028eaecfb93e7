package deviceapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrEmptyBody 响应体为空、null 或空对象，视为无数据
var ErrEmptyBody = errors.New("deviceapi: empty response body")

// Client 设备监控平台端口列表客户端。
// 每次调用只发一次请求，不做重试。
type Client struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewClient 创建客户端，timeout 约束单次请求
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// FetchPortList 拉取单台设备的端口列表。
// 返回 error 即表示无数据（网络错误、超时、响应体无法解析）；
// code != 0 的业务错误不在这里处理，由调用方根据 OK() 判断。
func (c *Client) FetchPortList(ctx context.Context, deviceID int64) (*PortListResponse, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("device_id", strconv.FormatInt(deviceID, 10)).
		Get(c.endpoint)
	if err != nil {
		c.logger.Warn("port list request failed",
			zap.Int64("device_id", deviceID),
			zap.Error(err))
		return nil, fmt.Errorf("request device %d: %w", deviceID, err)
	}

	out, err := decodePortList(resp.Body())
	if err != nil {
		c.logger.Warn("port list response not decodable",
			zap.Int64("device_id", deviceID),
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("body_size", len(resp.Body())),
			zap.Error(err))
		return nil, fmt.Errorf("decode device %d (http %d): %w", deviceID, resp.StatusCode(), err)
	}

	c.logger.Debug("port list fetched",
		zap.Int64("device_id", deviceID),
		zap.Int("http_status", resp.StatusCode()),
		zap.Int("ports", len(out.Ports())),
		zap.Duration("elapsed", resp.Time()))
	return out, nil
}

func decodePortList(body []byte) (*PortListResponse, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, err
	}
	if len(probe) == 0 {
		return nil, ErrEmptyBody
	}
	var out PortListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
