package orders

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// CodeSource produces the cosmetic overlay codes and carrier tracking
// numbers. It is injected so tests can supply deterministic values; neither
// code is a uniqueness-guaranteed key, both are display aids.
type CodeSource interface {
	OverlayCode() int
	TrackingNumber(prefix string, now time.Time) string
}

type randCodes struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewCodeSource() CodeSource {
	return &randCodes{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (c *randCodes) OverlayCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 100000 + c.r.Intn(900000)
}

func (c *randCodes) TrackingNumber(prefix string, now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%s%s%04d", prefix, now.Format("20060102"), 1000+c.r.Intn(9000))
}
