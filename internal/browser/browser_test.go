package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsXPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		selector string
		want     bool
	}{
		{`//*[@id="accept-privacy-consent"]/div`, true},
		{`(//button)[1]`, true},
		{"  /html/body", true},
		{".c-archives-load-more__button", false},
		{"div.c-entry-box--compact__body", false},
		{"", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, IsXPath(tc.selector), tc.selector)
	}
}
