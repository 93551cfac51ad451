package nacos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
)

const (
	pathServiceList   = "/nacos/v1/ns/service/list"
	pathInstanceList  = "/nacos/v1/ns/instance/list"
	pathConfigs       = "/nacos/v1/cs/configs"
	pathServerState   = "/nacos/v1/console/server/state"
	serviceListPage   = 100
	defaultHTTPExpiry = 10 * time.Second
)

// Options configures the Nacos adapter.
type Options struct {
	// ServerAddr is the Nacos address, host:port or a full URL.
	ServerAddr string
	HTTPClient *http.Client
	Logger     *zap.Logger
	// ListenPoll is the cadence at which subscriptions and config
	// listeners diff-poll the backend to synthesize push events.
	ListenPoll time.Duration
}

// Client talks to the Nacos v1 open API. It implements
// domain.ServiceDirectory, domain.ConfigStore and domain.VersionSource.
// Push registration is emulated with one diff-polling goroutine per
// subscription; duplicate registration for the same key is a no-op.
type Client struct {
	base       string
	http       *http.Client
	logger     *zap.Logger
	listenPoll time.Duration

	root   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners map[string]context.CancelFunc
}

var (
	_ domain.ServiceDirectory = (*Client)(nil)
	_ domain.ConfigStore      = (*Client)(nil)
	_ domain.VersionSource    = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	const op = "nacos.New"
	base, err := normalizeServerAddr(opts.ServerAddr)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPExpiry}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	listenPoll := opts.ListenPoll
	if listenPoll <= 0 {
		listenPoll = domain.DefaultListenPollSeconds * time.Second
	}

	root, cancel := context.WithCancel(context.Background())
	return &Client{
		base:       base,
		http:       httpClient,
		logger:     logger.Named("nacos"),
		listenPoll: listenPoll,
		root:       root,
		cancel:     cancel,
		listeners:  make(map[string]context.CancelFunc),
	}, nil
}

func normalizeServerAddr(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", fmt.Errorf("server address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse server address: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("server address %q has no host", addr)
	}
	return strings.TrimSuffix(parsed.Scheme+"://"+parsed.Host, "/"), nil
}

// Close stops every subscription goroutine.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	for key, cancel := range c.listeners {
		cancel()
		delete(c.listeners, key)
	}
	return nil
}

type serviceListResponse struct {
	Count int      `json:"count"`
	Doms  []string `json:"doms"`
}

// ListServices pages through the group's service names.
func (c *Client) ListServices(ctx context.Context, group string) ([]string, error) {
	const op = "nacos.ListServices"
	var services []string
	for page := 1; ; page++ {
		query := url.Values{
			"pageNo":    {fmt.Sprintf("%d", page)},
			"pageSize":  {fmt.Sprintf("%d", serviceListPage)},
			"groupName": {group},
		}
		var resp serviceListResponse
		if err := c.getJSON(ctx, pathServiceList, query, &resp); err != nil {
			return nil, domain.Wrap(domain.CodeUnavailable, op, err)
		}
		services = append(services, resp.Doms...)
		if len(services) >= resp.Count || len(resp.Doms) == 0 {
			break
		}
	}
	return services, nil
}

type instanceListResponse struct {
	Hosts []struct {
		IP      string `json:"ip"`
		Port    int    `json:"port"`
		Healthy bool   `json:"healthy"`
		Enabled bool   `json:"enabled"`
	} `json:"hosts"`
}

// ListInstances returns the service's instances with health flags.
func (c *Client) ListInstances(ctx context.Context, service, group string) ([]domain.ServiceInstance, error) {
	const op = "nacos.ListInstances"
	query := url.Values{
		"serviceName": {service},
		"groupName":   {group},
		"healthyOnly": {"false"},
	}
	var resp instanceListResponse
	if err := c.getJSON(ctx, pathInstanceList, query, &resp); err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	instances := make([]domain.ServiceInstance, 0, len(resp.Hosts))
	for _, host := range resp.Hosts {
		instances = append(instances, domain.ServiceInstance{
			Address: host.IP,
			Port:    host.Port,
			Healthy: host.Healthy,
			Enabled: host.Enabled,
		})
	}
	return instances, nil
}

// GetConfig fetches a configuration document. A 404 reports ok=false.
func (c *Client) GetConfig(ctx context.Context, key, group string, timeout time.Duration) (string, bool, error) {
	const op = "nacos.GetConfig"
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	query := url.Values{
		"dataId": {key},
		"group":  {group},
	}
	body, status, err := c.get(ctx, pathConfigs, query)
	if err != nil {
		return "", false, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	switch status {
	case http.StatusOK:
		return string(body), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, domain.E(domain.CodeUnavailable, op, fmt.Sprintf("unexpected status %d for %s", status, key), nil)
	}
}

type serverStateResponse struct {
	Version string `json:"version"`
}

// FetchVersion probes the backend's protocol version.
func (c *Client) FetchVersion(ctx context.Context) (string, error) {
	const op = "nacos.FetchVersion"
	var resp serverStateResponse
	if err := c.getJSON(ctx, pathServerState, nil, &resp); err != nil {
		return "", domain.Wrap(domain.CodeUnavailable, op, err)
	}
	if resp.Version == "" {
		return "", domain.E(domain.CodeInternal, op, "server state has no version", nil)
	}
	return resp.Version, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, status, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
