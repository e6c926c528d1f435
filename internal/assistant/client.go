// Package assistant talks to the remote assistant service: threads, messages,
// runs, files, and assistant definitions, plus the run driver that turns one
// inbound message into one response outcome.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com"

	// betaHeader opts in to the assistants API surface.
	betaHeader = "assistants=v2"

	// maxFileBytes bounds a single downloaded file.
	maxFileBytes = 64 << 20
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil || c.HTTP == nil {
		return fmt.Errorf("assistant client is not initialized")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("OpenAI-Beta", betaHeader)
}

func decodeError(status int, raw []byte) error {
	var out apiError
	if err := json.Unmarshal(raw, &out); err == nil && out.Error != nil && out.Error.Message != "" {
		return fmt.Errorf("assistant http %d: %s", status, out.Error.Message)
	}
	return fmt.Errorf("assistant http %d: %s", status, strings.TrimSpace(string(raw)))
}

// CreateThread opens a new remote conversation.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var out Thread
	if err := c.do(ctx, http.MethodPost, "/v1/threads", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMessage appends one message to a remote thread.
func (c *Client) CreateMessage(ctx context.Context, cfg MessageCreate) (*Message, error) {
	if strings.TrimSpace(cfg.ThreadID) == "" {
		return nil, fmt.Errorf("thread_id is required")
	}
	role := cfg.Role
	if role == "" {
		role = RoleUser
	}
	in := struct {
		Role        Role            `json:"role"`
		Content     string          `json:"content"`
		Attachments []AttachmentRef `json:"attachments,omitempty"`
	}{Role: role, Content: cfg.Content, Attachments: cfg.Attachments}

	var out Message
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+cfg.ThreadID+"/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRun starts a new run binding threadID to assistantID.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	in := struct {
		AssistantID string `json:"assistant_id"`
	}{AssistantID: assistantID}
	var out Run
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/runs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/runs/"+runID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns the thread's messages ordered newest-first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var out struct {
		Data []*Message `json:"data"`
	}
	path := "/v1/threads/" + threadID + "/messages?order=desc&limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UploadFile uploads raw bytes for assistant consumption and returns the
// remote file id.
func (c *Client) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	if c == nil || c.HTTP == nil {
		return "", fmt.Errorf("assistant client is not initialized")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("filename is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError(resp.StatusCode, raw)
	}
	var out File
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode file upload: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("file upload returned empty id")
	}
	return out.ID, nil
}

// FileContent fetches the raw bytes of an uploaded file.
func (c *Client) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	if c == nil || c.HTTP == nil {
		return nil, fmt.Errorf("assistant client is not initialized")
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("file_id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/files/"+fileID+"/content", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}

// AssistantCreate is the payload for a new assistant definition.
type AssistantCreate struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Model        string   `json:"model"`
	Instructions string   `json:"instructions,omitempty"`
	Tools        []Tool   `json:"tools,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	FileIDs      []string `json:"file_ids,omitempty"`
}

func (c *Client) CreateAssistant(ctx context.Context, cfg AssistantCreate) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, "/v1/assistants", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodGet, "/v1/assistants/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAssistants(ctx context.Context, limit int) ([]*Assistant, error) {
	if limit <= 0 {
		limit = 20
	}
	var out struct {
		Data []*Assistant `json:"data"`
	}
	path := "/v1/assistants?order=desc&limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) UpdateAssistant(ctx context.Context, id string, cfg AssistantCreate) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, "/v1/assistants/"+id, cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/v1/assistants/"+id, nil, &out); err != nil {
		return err
	}
	if !out.Deleted {
		return fmt.Errorf("assistant %s was not deleted", id)
	}
	return nil
}
