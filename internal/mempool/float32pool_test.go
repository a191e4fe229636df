package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(0))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 3*48*320, sizeClass(3*48*320))
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(3 * 48 * 100)
	assert.Len(t, buf, 3*48*100)
	assert.GreaterOrEqual(t, cap(buf), sizeClass(3*48*100))
	PutFloat32(buf)

	again := GetFloat32(3 * 48 * 100)
	assert.Len(t, again, 3*48*100)

	assert.Empty(t, GetFloat32(-5))
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
	})
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 50 {
				buf := GetFloat32(n*700 + j)
				for k := range buf {
					buf[k] = float32(k)
				}
				PutFloat32(buf)
			}
		}(i + 1)
	}
	wg.Wait()
}
