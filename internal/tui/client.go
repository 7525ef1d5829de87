package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 30 * time.Second

// Client wraps HTTP calls to the Relay API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListTools fetches the merged tool catalogue
func (c *Client) ListTools() ([]ToolItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/tools")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Origin      string `json:"origin"`
		ServerID    string `json:"server_id"`
		RemoteName  string `json:"remote_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		return nil, err
	}

	items := make([]ToolItem, len(tools))
	for i, t := range tools {
		items[i] = ToolItem{
			Name:        t.Name,
			Description: t.Description,
			Origin:      t.Origin,
			ServerID:    t.ServerID,
			RemoteName:  t.RemoteName,
		}
	}
	return items, nil
}

// Dispatch invokes a tool by its catalogue name
func (c *Client) Dispatch(tool string, args map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"tool": tool,
		"args": args,
	}
	resp, err := c.post("/dispatch", body)
	if err != nil {
		return "", err
	}

	var result struct {
		Result struct {
			Text string `json:"text"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.Result.Text, nil
}

// ListServers fetches registered tool servers
func (c *Client) ListServers() ([]ServerItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/servers")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var servers []struct {
		ID          string `json:"id"`
		Prefix      string `json:"prefix"`
		State       string `json:"state"`
		ToolCount   int    `json:"tool_count"`
		LastError   string `json:"last_error"`
		ConnectedAt string `json:"connected_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&servers); err != nil {
		return nil, err
	}

	items := make([]ServerItem, len(servers))
	for i, s := range servers {
		items[i] = ServerItem{
			ID:          s.ID,
			Prefix:      s.Prefix,
			State:       s.State,
			ToolCount:   s.ToolCount,
			LastError:   s.LastError,
			ConnectedAt: s.ConnectedAt,
		}
	}
	return items, nil
}

// RegisterServer registers a new tool server
func (c *Client) RegisterServer(id, prefix, endpoint string) error {
	body := map[string]string{
		"id":       id,
		"prefix":   prefix,
		"endpoint": endpoint,
	}
	_, err := c.post("/servers", body)
	return err
}

// RemoveServer unregisters a tool server
func (c *Client) RemoveServer(id string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/servers/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", string(body))
	}
	return nil
}

// ReconnectServer reconnects a server and refreshes its tool snapshot
func (c *Client) ReconnectServer(id string) error {
	_, err := c.post("/servers/"+url.PathEscape(id)+"/reconnect", nil)
	return err
}

// ListInvocations fetches recent audit log entries
func (c *Client) ListInvocations(tool string, limit int) ([]InvocationItem, error) {
	u := c.baseURL + "/invocations"
	params := url.Values{}
	if tool != "" {
		params.Set("tool", tool)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var recs []struct {
		Tool       string `json:"tool"`
		Status     string `json:"status"`
		ErrorKind  string `json:"error_kind"`
		Detail     string `json:"detail"`
		DurationMS int64  `json:"duration_ms"`
		StartedAt  string `json:"started_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, err
	}

	items := make([]InvocationItem, len(recs))
	for i, r := range recs {
		items[i] = InvocationItem{
			Tool:       r.Tool,
			Status:     r.Status,
			ErrorKind:  r.ErrorKind,
			Detail:     r.Detail,
			DurationMS: r.DurationMS,
			StartedAt:  r.StartedAt,
		}
	}
	return items, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}
