/**
 * OCR Server Client - manga-ocr model server
 *
 * The Japanese manga recognition model runs as a separate HTTP model server.
 * This client posts one base64 PNG crop per call and returns its text.
 *
 * Endpoints:
 * - POST /api/v1/ocr  {"image": "<base64>", "format": "base64"} -> {"success": true, "data": {"text": "..."}}
 * - GET  /api/health
 *
 * Plain {"text": "..."} bodies are accepted as well.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/logging"
)

// OCRServerClient handles communication with the OCR model server
type OCRServerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// OCRServerRequest is one crop submitted for recognition
type OCRServerRequest struct {
	Image  string `json:"image"`  // Base64 encoded PNG
	Format string `json:"format"` // always "base64"
	JobID  string `json:"jobId,omitempty"`
}

// OCRServerResponse is the model server reply
type OCRServerResponse struct {
	Success *bool         `json:"success,omitempty"`
	Data    OCRServerData `json:"data"`
	Message string        `json:"message,omitempty"`
	// Text is set by servers that reply with a bare {"text": ...} body
	Text string `json:"text,omitempty"`
}

// OCRServerData carries the recognized text
type OCRServerData struct {
	Text           string `json:"text"`
	ModelUsed      string `json:"modelUsed,omitempty"`
	ProcessingTime int64  `json:"processingTime,omitempty"` // milliseconds
}

// NewOCRServerClient creates a new OCR server client
func NewOCRServerClient(baseURL string) *OCRServerClient {
	return &OCRServerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logging.NewLogger("OCRServerClient"),
	}
}

// RecognizePNG sends one PNG-encoded crop and returns its text
func (c *OCRServerClient) RecognizePNG(ctx context.Context, pngData []byte) (string, error) {
	req := &OCRServerRequest{
		Image:  base64.StdEncoding.EncodeToString(pngData),
		Format: "base64",
	}

	endpoint := fmt.Sprintf("%s/api/v1/ocr", c.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "manga-translator")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("ocr-%d", time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to OCR server failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR server returned error status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp OCRServerResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if ocrResp.Success != nil && !*ocrResp.Success {
		return "", fmt.Errorf("OCR server operation failed: %s", ocrResp.Message)
	}

	text := ocrResp.Data.Text
	if text == "" {
		text = ocrResp.Text
	}

	c.logger.Debug("Crop recognized",
		"modelUsed", ocrResp.Data.ModelUsed,
		"processingTime", ocrResp.Data.ProcessingTime,
		"textLength", len(text))

	return text, nil
}

// HealthCheck verifies the OCR server is available
func (c *OCRServerClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
