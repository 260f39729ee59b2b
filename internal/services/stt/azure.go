package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scribe/internal/logging"
	"scribe/internal/services"
)

const (
	defaultAPIVersion = "2024-02-01"
	defaultTimeout    = 5 * time.Minute
	maxErrorBody      = 4 << 10
)

// AzureConfig captures the settings needed to reach a Whisper deployment.
type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string
	// Timeout bounds one request, upload included.
	Timeout time.Duration
}

// AzureClient calls the Azure OpenAI audio transcription API.
type AzureClient struct {
	cfg        AzureConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// AzureOption customizes the client.
type AzureOption func(*AzureClient)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) AzureOption {
	return func(c *AzureClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAzureClient constructs a client for the supplied deployment.
func NewAzureClient(cfg AzureConfig, opts ...AzureOption) *AzureClient {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Deployment = strings.TrimSpace(cfg.Deployment)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIVersion = strings.TrimSpace(cfg.APIVersion)
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &AzureClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "stt")
	return client
}

// TranscriptionURL returns the request URL for the configured deployment.
func (c *AzureClient) TranscriptionURL() (string, error) {
	if c.cfg.Endpoint == "" || c.cfg.Deployment == "" {
		return "", errors.New("stt: endpoint and deployment required")
	}
	base, err := url.JoinPath(c.cfg.Endpoint, "openai", "deployments", c.cfg.Deployment, "audio", "transcriptions")
	if err != nil {
		return "", fmt.Errorf("stt: build url: %w", err)
	}
	return base + "?api-version=" + url.QueryEscape(c.cfg.APIVersion), nil
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

type errorEnvelope struct {
	Error *struct {
		Code    any    `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads one audio chunk and returns the verbose transcription.
func (c *AzureClient) Transcribe(ctx context.Context, req Request) (Response, error) {
	if len(req.Audio) == 0 {
		return Response{}, &CallError{Message: "empty audio payload"}
	}
	if c.cfg.APIKey == "" {
		return Response{}, &CallError{Message: "api key required"}
	}
	endpoint, err := c.TranscriptionURL()
	if err != nil {
		return Response{}, &CallError{Err: err}
	}
	body, contentType, err := encodeForm(req)
	if err != nil {
		return Response{}, &CallError{Message: "encode form", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, &CallError{Message: "new request", Err: err}
	}
	httpReq.Header.Set("api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if id, ok := services.RequestIDFromContext(ctx); ok {
		httpReq.Header.Set("x-ms-client-request-id", id)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, c.transportError(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, c.transportError(ctx, callCtx, err)
	}
	logging.WithContext(ctx, c.logger).Debug("stt response",
		logging.Int("status", resp.StatusCode),
		logging.Int("audio_bytes", len(req.Audio)),
		logging.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, statusError(resp, payload)
	}

	var decoded verboseResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Response{}, &CallError{StatusCode: resp.StatusCode, Transient: true, Message: "decode response", Err: err}
	}
	return decoded.toResponse(), nil
}

func (c *AzureClient) transportError(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timedOut = true
	}
	message := "http error"
	if timedOut {
		message = fmt.Sprintf("no response within %s", c.cfg.Timeout)
	}
	return &CallError{Transient: true, TimedOut: timedOut, Message: message, Err: err}
}

func statusError(resp *http.Response, payload []byte) *CallError {
	callErr := &CallError{StatusCode: resp.StatusCode}
	var envelope errorEnvelope
	if json.Unmarshal(payload, &envelope) == nil && envelope.Error != nil {
		callErr.Code = errorCode(envelope.Error.Code, envelope.Error.Type)
		callErr.Message = envelope.Error.Message
	} else {
		if len(payload) > maxErrorBody {
			payload = payload[:maxErrorBody]
		}
		callErr.Message = strings.TrimSpace(string(payload))
	}
	callErr.Transient = classifyStatus(resp.StatusCode, callErr.Code)
	if callErr.Transient {
		callErr.RetryAfter = retryAfterHeader(resp.Header)
	}
	return callErr
}

// errorCode prefers a symbolic code; Azure often reports the status number in
// "code" and the reason in "type".
func errorCode(code any, typ string) string {
	var text string
	switch v := code.(type) {
	case string:
		text = v
	case float64:
		text = strconv.Itoa(int(v))
	}
	text = strings.TrimSpace(text)
	if text == "" || isNumeric(text) {
		if typ = strings.TrimSpace(typ); typ != "" {
			return typ
		}
	}
	return text
}

func isNumeric(value string) bool {
	_, err := strconv.Atoi(value)
	return err == nil
}

func retryAfterHeader(header http.Header) time.Duration {
	if ms := strings.TrimSpace(header.Get("retry-after-ms")); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	delay, _ := parseRetryAfter(header.Get("Retry-After"))
	return delay
}

func encodeForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		name = "audio.wav"
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		fields = append(fields, [2]string{"prompt", prompt})
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return &buf, form.FormDataContentType(), nil
}

func (v verboseResponse) toResponse() Response {
	out := Response{
		Text:     strings.TrimSpace(v.Text),
		Language: strings.TrimSpace(v.Language),
		Duration: seconds(v.Duration),
	}
	for _, seg := range v.Segments {
		out.Segments = append(out.Segments, Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return out
}

func seconds(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value*1000+0.5) * time.Millisecond
}
