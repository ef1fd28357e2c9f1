// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AccumulatesErrors(t *testing.T) {
	v := New()
	v.NotEmpty("name", "  ")
	v.OneOf("mode", "weird", []string{"native", "mock"})
	v.NonNegativeFloat("rate", -0.5)
	v.Positive("threshold", 3)

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"name", "mode", "rate"}, verr.Fields())
	assert.Contains(t, err.Error(), "validation failed for mode")
	assert.Equal(t, 2, strings.Count(err.Error(), "; "))
}

func TestValidator_ErrIsSnapshot(t *testing.T) {
	v := New()
	v.NotEmpty("a", "")
	err := v.Err()
	v.NotEmpty("b", "")

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"a"}, verr.Fields())
}

func TestValidator_ValidReturnsNil(t *testing.T) {
	v := New()
	v.OneOf("mode", "mock", []string{"native", "mock"})
	v.PositiveDuration("interval", time.Second)
	v.NonNegativeDuration("maxWait", 0)
	v.FloatRange("sample", 0.5, 0, 1)
	v.ListenAddr("listen", ":8080")
	v.NonNegative("pending", 0)
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{":8080", true},
		{"127.0.0.1:9000", true},
		{"localhost", false},
		{"localhost:", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("listen", tt.addr)
			assert.Equal(t, tt.valid, v.IsValid())
		})
	}
}

func TestValidator_Durations(t *testing.T) {
	v := New()
	v.PositiveDuration("interval", 0)
	v.PositiveDuration("interval", -time.Second)
	v.NonNegativeDuration("settle", -time.Millisecond)
	assert.Len(t, v.Errors(), 3)
}

func TestValidator_Custom(t *testing.T) {
	v := New()
	v.Custom("charset", "klingon", func(any) error { return errors.New("unknown charset") })
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "unknown charset", v.Errors()[0].Message)
}

func TestLogLevels(t *testing.T) {
	assert.Contains(t, LogLevels(), "warn")
	assert.NotContains(t, LogLevels(), "verbose")
}
