// Package parser provides document parsing adapters.
// Clean Architecture: Adapter implementing ports.DocumentParser.
// Calls an external Python extraction service for PDF and DOCX course files.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// PythonDocParser implements ports.DocumentParser over the extraction service.
// Dependency Inversion: the loader depends on DocumentParser, not this.
type PythonDocParser struct {
	serviceURL string
	client     *http.Client
	pythonCmd  *exec.Cmd
}

// NewPythonDocParser creates a parser that calls the extraction service.
func NewPythonDocParser(serviceURL string, timeout time.Duration) *PythonDocParser {
	if serviceURL == "" {
		serviceURL = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PythonDocParser{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

// parseResponse is the Python service response format.
type parseResponse struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Parse extracts text from document bytes. The format is taken from the
// filename extension.
func (p *PythonDocParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !p.supports(format) {
		return "", fmt.Errorf("unsupported format %q", format)
	}

	endpoint := p.serviceURL + "/parse?" + url.Values{"format": {format}, "filename": {filepath.Base(filename)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%s parse error: %s", format, result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	log.Printf("[DEBUG] Extracted %s (%d pages via %s)", filepath.Base(filename), result.Pages, result.Library)
	return result.Text, nil
}

// SupportedFormats returns formats this parser handles.
func (p *PythonDocParser) SupportedFormats() []string {
	return []string{"pdf", "docx"}
}

func (p *PythonDocParser) supports(format string) bool {
	for _, f := range p.SupportedFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// StartService starts the Python extraction service from scriptPath as a
// subprocess and waits for it to report healthy. The returned func stops it.
func (p *PythonDocParser) StartService(ctx context.Context, scriptPath string) (func(), error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("extraction service script: %w", err)
	}

	p.pythonCmd = exec.Command("python3", scriptPath)
	p.pythonCmd.Stdout = os.Stdout
	p.pythonCmd.Stderr = os.Stderr

	if err := p.pythonCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting Python service: %w", err)
	}

	cleanup := func() {
		if p.pythonCmd != nil && p.pythonCmd.Process != nil {
			p.pythonCmd.Process.Kill()
			p.pythonCmd.Wait()
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for !p.IsServiceHealthy(ctx) {
		if time.Now().After(deadline) {
			cleanup()
			return nil, fmt.Errorf("extraction service did not become healthy at %s", p.serviceURL)
		}
		select {
		case <-ctx.Done():
			cleanup()
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	log.Printf("[INFO] Extraction service ready at %s", p.serviceURL)

	return cleanup, nil
}

// IsServiceHealthy checks if the Python service is running.
func (p *PythonDocParser) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
