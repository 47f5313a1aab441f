package marketplace_test

import (
	"testing"

	auth "github.com/workisready/marketplace"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFilePath(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"uploads/avatars/a.jpg", "uploads/avatars/a.jpg"},
		{`uploads\avatars\a.jpg`, "uploads/avatars/a.jpg"},
		{"uploads//avatars///a.jpg", "uploads/avatars/a.jpg"},
		{`uploads\\samples\b.png`, "uploads/samples/b.png"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, auth.NormalizeFilePath(tc.in), "input %q", tc.in)
	}
}
