package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.NotNil(t, GetLogger())

	// Logging with a populated context must not panic.
	ctx := context.WithValue(context.Background(), CorrelationIDKey, "abc")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	ctx = context.WithValue(ctx, ChannelIDKey, "lobby")
	Info(ctx, "hello")
	Warn(context.Background(), "hello")
	Error(nil, "hello") //nolint:staticcheck
}

func TestRedactIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"203.0.113.9", "203.***"},
		{"2001:db8::1", "2001.***"},
		{"localhost", "***"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactIP(tt.in), "input %q", tt.in)
	}
}
