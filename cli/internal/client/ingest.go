package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IngestClient posts raw sensor payloads to the ingestion gateway.
type IngestClient struct {
	baseURL string
	path    string
	client  *http.Client
}

func NewIngestClient(baseURL, path string) *IngestClient {
	if path == "" {
		path = "/ingest"
	}
	return &IngestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts payload verbatim with the given content type. The gateway
// answers 200 on acceptance; any other status is returned as an error.
func (c *IngestClient) Send(token string, payload []byte, contentType string) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+c.path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ingest failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
