package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"scribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "extract-audio", "ffmpeg", "failed", base)
	require.Error(t, err)
	require.ErrorIs(t, err, services.ErrExtraction)
	require.ErrorIs(t, err, base)
	for _, fragment := range []string{"extract-audio", "ffmpeg", "failed"} {
		require.True(t, strings.Contains(err.Error(), fragment), "expected %q in %q", fragment, err.Error())
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrStructural, "", "", "", nil)
	require.ErrorIs(t, err, services.ErrStructural)
	require.Contains(t, err.Error(), "service failure")
}

func TestMarkerFindsSentinel(t *testing.T) {
	err := fmt.Errorf("job lesson01: %w", services.Wrap(services.ErrNoAudioStream, "extract-audio", "probe", "no audio", nil))
	require.Equal(t, services.ErrNoAudioStream, services.Marker(err))
	require.Nil(t, services.Marker(errors.New("plain")))
	require.Nil(t, services.Marker(nil))
}

func TestDetailsHints(t *testing.T) {
	tests := []struct {
		marker error
		want   string
	}{
		{services.ErrStructural, "scribe prepare"},
		{services.ErrDeviceUnavailable, "--device cpu"},
		{services.ErrCredential, "--secrets-dir"},
	}
	for _, tc := range tests {
		msg, hint := services.Details(services.Wrap(tc.marker, "stage", "op", "msg", nil))
		require.NotEmpty(t, msg)
		require.Contains(t, hint, tc.want)
	}

	msg, hint := services.Details(nil)
	require.Empty(t, msg)
	require.Empty(t, hint)
}
