package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.2.3"

	v, _, _ := Info()
	assert.Equal(t, "1.2.3", v)
	assert.Contains(t, String(), "lipi 1.2.3 (commit unknown")
}
