package internal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		blob string
		want []string
	}{
		{"", []string{}},
		{"  ", []string{}},
		{"k1", []string{"k1"}},
		{"k1,k2", []string{"k1", "k2"}},
		{" k1 \n\n k2 ,, k3\r\n", []string{"k1", "k2", "k3"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseKeys(tt.blob), "blob %q", tt.blob)
	}
}

func TestWithKeys_NoKeys(t *testing.T) {
	called := false
	_, err := WithKeys(context.Background(), " , \n", func(context.Context, string) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrNoKeys)
	assert.False(t, called)
}

func TestWithKeys_RotatesUntilSuccess(t *testing.T) {
	var tried []string
	var observed []int
	got, err := WithKeys(context.Background(), "bad1,bad2,good,unused", func(_ context.Context, key string) (string, error) {
		tried = append(tried, key)
		if key != "good" {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	}, func(attempt int, err error) { observed = append(observed, attempt) })

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []string{"bad1", "bad2", "good"}, tried)
	assert.Equal(t, []int{0, 1, 2}, observed)
}

func TestWithKeys_AlwaysStartsFromFirstKey(t *testing.T) {
	var first []string
	for i := 0; i < 2; i++ {
		seen := false
		_, _ = WithKeys(context.Background(), "a,b", func(_ context.Context, key string) (int, error) {
			if !seen {
				first = append(first, key)
				seen = true
			}
			return 0, nil
		})
	}
	assert.Equal(t, []string{"a", "a"}, first)
}

func TestWithKeys_Exhausted(t *testing.T) {
	last := errors.New("key b rejected")
	_, err := WithKeys(context.Background(), "a,b", func(_ context.Context, key string) (int, error) {
		if key == "b" {
			return 0, last
		}
		return 0, errors.New("key a rejected")
	})

	var exhausted *KeysExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "all 2 API keys failed")
}

func TestWithKeys_SingleKeyKeepsMessage(t *testing.T) {
	_, err := WithKeys(context.Background(), "only", func(context.Context, string) (int, error) {
		return 0, errors.New("forbidden")
	})
	assert.EqualError(t, err, "forbidden")
}

func TestWithKeys_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := WithKeys(ctx, "a,b,c", func(context.Context, string) (int, error) {
		calls++
		cancel()
		return 0, errors.New("failed")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithKeys_LogsFailedKeysToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	_, err := WithKeys(ctx, "k1,k2", func(_ context.Context, key string) (string, error) {
		if key == "k1" {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "API key failed, trying next")
	assert.Contains(t, buf.String(), `"key":1`)
	assert.Contains(t, buf.String(), "quota exceeded")
}
