package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, VERSION)
	assert.False(t, strings.HasSuffix(VERSION, "\n"))
	assert.Equal(t, 3, len(strings.Split(strings.Split(VERSION, "-")[0], ".")))
	assert.Equal(t, "typely-certify/"+VERSION, UserAgent())
}
