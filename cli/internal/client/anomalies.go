package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

const workerTokenHeader = "X-Worker-Token"

// ValidationError carries the messages of a 422 response.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// StatusError is returned for any other unexpected status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type AnomalyClient struct {
	baseURL string
	client  *http.Client
}

func NewAnomalyClient(baseURL string) *AnomalyClient {
	return &AnomalyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AnomalyClient) doRequest(method, path, workerToken string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if workerToken != "" {
		req.Header.Set(workerTokenHeader, workerToken)
	}

	return c.client.Do(req)
}

// Create submits a validated create and returns the new record id.
func (c *AnomalyClient) Create(workerToken string, req *model.CreateAnomalyRequest) (int64, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/v1/anomalies", workerToken, map[string]interface{}{"anomaly": req})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created model.CreatedResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return 0, err
		}
		return created.ID, nil
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		var rejected model.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&rejected); err == nil && len(rejected.Errors) > 0 {
			return 0, &ValidationError{Messages: rejected.Errors}
		}
		return 0, &StatusError{StatusCode: resp.StatusCode}
	default:
		return 0, readStatusError(resp)
	}
}

// List returns the most recent anomalies, newest first.
func (c *AnomalyClient) List(limit int) ([]model.Anomaly, error) {
	path := "/api/v1/anomalies"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	resp, err := c.doRequest(http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var out struct {
		Anomalies []model.Anomaly `json:"anomalies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Anomalies, nil
}

func (c *AnomalyClient) Stats() (*model.Stats, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/v1/anomalies/stats", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var stats model.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
