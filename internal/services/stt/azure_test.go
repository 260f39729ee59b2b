package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scribe/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *AzureClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAzureClient(AzureConfig{
		Endpoint:   server.URL + "/",
		Deployment: "whisper",
		APIKey:     "secret-key",
		Timeout:    timeout,
	})
}

func TestTranscribeSendsMultipartAndParsesSegments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/openai/deployments/whisper/audio/transcriptions", r.URL.Path)
		require.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		require.Equal(t, "secret-key", r.Header.Get("api-key"))
		require.Equal(t, "chunk-7", r.Header.Get("x-ms-client-request-id"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "en", r.FormValue("language"))
		require.Equal(t, "verbose_json", r.FormValue("response_format"))
		require.Equal(t, "segment", r.FormValue("timestamp_granularities[]"))
		require.Equal(t, "speech only", r.FormValue("prompt"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "chunk-000.wav", header.Filename)
		require.Equal(t, "RIFF", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" Hello there. General Kenobi. ","language":"english","duration":10.0,
			"segments":[{"id":0,"start":0.0,"end":2.5,"text":" Hello there."},{"id":1,"start":2.5,"end":4.235,"text":" General Kenobi."}]}`)
	}, time.Second)

	ctx := services.WithRequestID(context.Background(), "chunk-7")
	resp, err := client.Transcribe(ctx, Request{
		Audio:    []byte("RIFF"),
		FileName: "chunk-000.wav",
		Language: "en",
		Prompt:   "speech only",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello there. General Kenobi.", resp.Text)
	require.Equal(t, 10*time.Second, resp.Duration)
	require.Len(t, resp.Segments, 2)
	require.Equal(t, Segment{Start: 2500 * time.Millisecond, End: 4235 * time.Millisecond, Text: "General Kenobi."}, resp.Segments[1])
}

func TestTranscribeClassifiesStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		header     map[string]string
		transient  bool
		code       string
		retryAfter time.Duration
	}{
		{name: "throttled", status: 429, body: `{"error":{"code":"429","message":"rate limit"}}`, header: map[string]string{"Retry-After": "7"}, transient: true, code: "429", retryAfter: 7 * time.Second},
		{name: "throttled ms", status: 429, body: `{}`, header: map[string]string{"retry-after-ms": "250"}, transient: true, retryAfter: 250 * time.Millisecond},
		{name: "quota", status: 429, body: `{"error":{"code":"429","type":"insufficient_quota","message":"quota exhausted"}}`, transient: false, code: "insufficient_quota"},
		{name: "unauthorized", status: 401, body: `{"error":{"code":"401","message":"Access denied"}}`, transient: false, code: "401"},
		{name: "server", status: 503, body: "upstream unavailable", transient: true},
		{name: "bad request", status: 400, body: `{"error":{"code":"invalid_file","message":"bad audio"}}`, transient: false, code: "invalid_file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, time.Second)

			_, err := client.Transcribe(context.Background(), Request{Audio: []byte("x")})
			require.Error(t, err)
			var callErr *CallError
			require.True(t, errors.As(err, &callErr))
			require.Equal(t, tc.status, callErr.StatusCode)
			require.Equal(t, tc.transient, IsTransient(err))
			require.Equal(t, !tc.transient, errors.Is(err, services.ErrSTTPermanent))
			require.Equal(t, tc.code, callErr.Code)
			require.Equal(t, tc.retryAfter, RetryAfter(err))
		})
	}
}

func TestTranscribeTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.Transcribe(context.Background(), Request{Audio: []byte("x")})
	require.Error(t, err)
	require.True(t, IsTransient(err))
	require.ErrorIs(t, err, services.ErrTimeout)
}

func TestTranscribeCallerCancellationIsNotACallError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Transcribe(ctx, Request{Audio: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
	var callErr *CallError
	require.False(t, errors.As(err, &callErr))
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := NewAzureClient(AzureConfig{Endpoint: "https://example.invalid", Deployment: "d", APIKey: "k"})
	_, err := client.Transcribe(context.Background(), Request{})
	require.ErrorIs(t, err, services.ErrSTTPermanent)
}

func TestTranscriptionURL(t *testing.T) {
	client := NewAzureClient(AzureConfig{Endpoint: "https://acct.openai.azure.com/", Deployment: "whisper-1", APIKey: "k", APIVersion: "2024-06-01"})
	got, err := client.TranscriptionURL()
	require.NoError(t, err)
	require.Equal(t, "https://acct.openai.azure.com/openai/deployments/whisper-1/audio/transcriptions?api-version=2024-06-01", got)
}
