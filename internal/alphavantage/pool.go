package alphavantage

import "sync"

// KeyPool is an ordered set of API credentials with a rotation cursor. A
// pool belongs to exactly one client and is mutated only through Advance and
// Reset, so throttling one credential fails over to the next in a fixed
// order.
type KeyPool struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

func NewKeyPool(keys []string) *KeyPool {
	ks := make([]string, len(keys))
	copy(ks, keys)
	return &KeyPool{keys: ks}
}

func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Current returns the credential under the cursor and its position.
func (p *KeyPool) Current() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.idx], p.idx
}

// Advance moves the cursor to the next credential, wrapping at the end of
// the pool, and returns the newly selected credential with its position.
func (p *KeyPool) Advance() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = (p.idx + 1) % len(p.keys)
	return p.keys[p.idx], p.idx
}

// Reset rewinds the cursor to the first credential. Called at the start of
// each run so rotation state never leaks across runs.
func (p *KeyPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = 0
}
