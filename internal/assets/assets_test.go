package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	tt := []struct {
		name string
		base string
		p    string
		want string
	}{
		{name: "empty path", base: "/portfolio/", p: "", want: ""},
		{name: "data url", base: "/portfolio/", p: "data:image/png;base64,AAA=", want: "data:image/png;base64,AAA="},
		{name: "http url", base: "/portfolio/", p: "http://cdn.example.com/a.png", want: "http://cdn.example.com/a.png"},
		{name: "https url", base: "/portfolio/", p: "https://cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "root base", base: "/", p: "images/logo.png", want: "/images/logo.png"},
		{name: "empty base", base: "", p: "/images/logo.png", want: "/images/logo.png"},
		{name: "relative path", base: "/portfolio/", p: "images/logo.png", want: "/portfolio/images/logo.png"},
		{name: "absolute path", base: "/portfolio", p: "/images/logo.png", want: "/portfolio/images/logo.png"},
		{name: "base without slash", base: "portfolio", p: "images/logo.png", want: "/portfolio/images/logo.png"},
		{name: "already prefixed", base: "/portfolio/", p: "/portfolio/images/logo.png", want: "/portfolio/images/logo.png"},
		{name: "prefix lookalike", base: "/portfolio/", p: "/portfolios/a.png", want: "/portfolio/portfolios/a.png"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Path(tc.base, tc.p))
		})
	}
}
