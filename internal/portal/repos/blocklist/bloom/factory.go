package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/portalgate/internal/portal/repos/blocklist"
)

type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and
// false-positive rate.
func NewFactory() blocklist.BloomFactory { return factory{} }

func (factory) New(capacity uint64, fpRate float64) blocklist.BloomFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
