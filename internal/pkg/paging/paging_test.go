package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Request{Page: 0, Size: 20}, Request{Page: -1, Size: 0}.Normalize())
	assert.Equal(t, Request{Page: 2, Size: 100}, Request{Page: 2, Size: 500}.Normalize())
	assert.Equal(t, Request{Page: 1, Size: 10}, Request{Page: 1, Size: 10}.Normalize())
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Request{Page: 0, Size: 20}.Offset())
	assert.Equal(t, 40, Request{Page: 2, Size: 20}.Offset())
}

func TestNewInfo(t *testing.T) {
	info := NewInfo(Request{Page: 1, Size: 10}, 25)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, int64(25), info.TotalElements)

	info = NewInfo(Request{Page: 0, Size: 10}, 30)
	assert.Equal(t, 3, info.TotalPages)

	info = NewInfo(Request{Page: 0, Size: 10}, 0)
	assert.Equal(t, 0, info.TotalPages)
}
