package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeCookies(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{
			name: "separate headers",
			in:   []string{"XSRF-TOKEN=abc; Path=/", "session=pre; Path=/; HttpOnly"},
			want: "XSRF-TOKEN=abc; session=pre",
		},
		{
			name: "comma joined with expires",
			in:   []string{"a=1; Expires=Wed, 21 Oct 2026 07:28:00 GMT; Path=/, b=2; Path=/"},
			want: "a=1; b=2",
		},
		{
			name: "later value wins in first-seen order",
			in:   []string{"session=pre; Path=/", "other=x", "session=post; Path=/"},
			want: "session=post; other=x",
		},
		{
			name: "value containing equals",
			in:   []string{"token=YWJj==; Secure"},
			want: "token=YWJj==",
		},
		{
			name: "garbage skipped",
			in:   []string{"", "novalue", "=orphan"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeCookies(tt.in...))
		})
	}
}
