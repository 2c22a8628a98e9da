package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPublicPath(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		basePath string
		expected string
	}{
		{"empty base path", `url(/static/a.png)`, "", `url(/static/a.png)`},
		{"no occurrence", `url(img/a.png)`, "/static/", `url(img/a.png)`},
		{"css url", `url(/static/a.png)`, "/static/", `url(a.png)`},
		{"quoted attribute", `<img src="/static/a.png">`, "/static/", `<img src="a.png">`},
		{"single quotes", `x='/static/a.png'`, "/static/", `x='a.png'`},
		{"marker required", `"/static/a.png"`, "/static/", `"/static/a.png"`},
		{"protocol relative kept", `<script src="//cdn.example.com/a.js">`, "/", `<script src="//cdn.example.com/a.js">`},
		{"root base path", `<script src="/a.js">`, "/", `<script src="a.js">`},
		{"no trailing separator", `url(/assets/a.png)`, "/assets", `url(/a.png)`},
		{"dots are literal", `url(/staticXv1/a.png)`, "/static.v1/", `url(/staticXv1/a.png)`},
		{"every occurrence", `url(/static/a.png) url(/static/b.png)`, "/static/", `url(a.png) url(b.png)`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, StripPublicPath(c.content, c.basePath))
		})
	}
}
