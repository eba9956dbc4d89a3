package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStandardHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		want    RateLimitInfo
	}{
		{
			name:    "empty headers",
			headers: http.Header{},
			want:    RateLimitInfo{},
		},
		{
			name: "retry after seconds",
			headers: http.Header{
				"Retry-After": []string{"30"},
			},
			want: RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name: "reset and remaining",
			headers: http.Header{
				"X-Ratelimit-Reset":     []string{"1700000000"},
				"X-Ratelimit-Remaining": []string{"42"},
			},
			want: RateLimitInfo{ResetTime: 1700000000, RequestsRemaining: 42},
		},
		{
			name: "malformed values ignored",
			headers: http.Header{
				"Retry-After":           []string{"not-a-number"},
				"X-Ratelimit-Reset":     []string{"soon"},
				"X-Ratelimit-Remaining": []string{"many"},
			},
			want: RateLimitInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStandardHeaders(tt.headers))
		})
	}
}

func TestParseStandardHeadersHTTPDate(t *testing.T) {
	headers := http.Header{
		"Retry-After": []string{time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)},
	}
	info := ParseStandardHeaders(headers)
	assert.Greater(t, info.RetryAfter, 5*time.Second)
	assert.LessOrEqual(t, info.RetryAfter, 10*time.Second)
}
