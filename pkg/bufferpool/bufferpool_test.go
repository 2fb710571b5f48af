package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer(t *testing.T) {
	buf := Get()
	buf.WriteString("deal")
	out := buf.Clone()
	buf.Free()

	next := Get()
	defer next.Free()
	assert.Zero(t, next.Len())
	assert.Equal(t, []byte("deal"), out)
}
