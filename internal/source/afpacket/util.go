package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
	maxBlockSize     = 4 << 20
)

type ringLayout struct {
	frameSize int
	blockSize int
	numBlocks int
}

// computeRing sizes a PACKET_MMAP ring for bufferMB of memory. The kernel
// requires frameSize to be a multiple of TPACKET_ALIGNMENT and blockSize a
// multiple of both the page size and frameSize.
func computeRing(bufferMB, snapLen, pageSize int) (ringLayout, error) {
	if bufferMB <= 0 {
		return ringLayout{}, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return ringLayout{}, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringLayout{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize := alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize := lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// page-sized frames keep the block a multiple of both
		frameSize = alignUp(frameSize, pageSize)
		frames := maxBlockSize / frameSize
		if frames < 1 {
			frames = 1
		}
		blockSize = frames * frameSize
	}

	numBlocks := bufferMB * 1024 * 1024 / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return ringLayout{frameSize: frameSize, blockSize: blockSize, numBlocks: numBlocks}, nil
}

func alignUp(n, to int) int {
	return (n + to - 1) / to * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
