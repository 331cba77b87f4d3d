package afpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRing(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
		pageSize int
	}{
		{"mtu frames", 8, 1514, 4096},
		{"jumbo frames", 8, 9014, 4096},
		{"gro frames", 8, 65536, 4096},
		{"tiny buffer", 1, 65536, 4096},
		{"large pages", 64, 65536, 65536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := computeRing(tt.bufferMB, tt.snapLen, tt.pageSize)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, r.frameSize, tt.snapLen+tpacketHdrLen)
			assert.Zero(t, r.frameSize%tpacketAlignment)
			assert.Zero(t, r.blockSize%tt.pageSize)
			assert.Zero(t, r.blockSize%r.frameSize)
			assert.GreaterOrEqual(t, r.numBlocks, 1)
		})
	}
}

func TestComputeRingRejects(t *testing.T) {
	_, err := computeRing(0, 1514, 4096)
	assert.Error(t, err)
	_, err = computeRing(8, 0, 4096)
	assert.Error(t, err)
	_, err = computeRing(8, 1514, 4000)
	assert.Error(t, err)
}

func TestLCM(t *testing.T) {
	assert.Equal(t, 12, lcm(4, 6))
	assert.Equal(t, 0, lcm(0, 6))
	assert.Equal(t, 4096, lcm(4096, 16))
}
