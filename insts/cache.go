package insts

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig sizes a Cache.
type CacheConfig struct {
	// Entries is the number of instruction words kept.
	Entries int
	// Associativity is the number of ways per set.
	Associativity int
}

// DefaultCacheConfig returns a configuration that holds the hot loop of a
// typical benchmark.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Entries:       1024,
		Associativity: 4,
	}
}

// CacheStatistics holds cache performance statistics.
type CacheStatistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Invalid counts tokens that were not instruction words.
	Invalid uint64
}

// wordBytes is the block size of the directory. Each block holds the text
// of one instruction word.
const wordBytes = 4

// Cache memoizes disassembly text by instruction word. Tags and LRU state
// live in an Akita cache directory; the rendered text is stored per block.
type Cache struct {
	config  CacheConfig
	decoder *Decoder

	directory *akitacache.DirectoryImpl

	// text is indexed by setID*associativity + wayID.
	text []string

	stats CacheStatistics
}

// NewCache creates a Cache in front of decoder.
func NewCache(config CacheConfig, decoder *Decoder) *Cache {
	if config.Associativity < 1 {
		config.Associativity = 1
	}
	numSets := config.Entries / config.Associativity
	if numSets < 1 {
		numSets = 1
	}
	config.Entries = numSets * config.Associativity

	return &Cache{
		config:  config,
		decoder: decoder,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			wordBytes,
			akitacache.NewLRUVictimFinder(),
		),
		text: make([]string, config.Entries),
	}
}

// Config returns the effective cache configuration.
func (c *Cache) Config() CacheConfig {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStatistics {
	return c.stats
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Disassemble renders a hex instruction token, decoding each distinct word
// only while it stays resident.
func (c *Cache) Disassemble(token string) string {
	c.stats.Lookups++

	word, ok := ParseWord(token)
	if !ok {
		c.stats.Invalid++
		return invalid(token)
	}

	addr := uint64(word) * wordBytes

	block := c.directory.Lookup(0, addr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.text[c.blockIndex(block)]
	}

	c.stats.Misses++
	text := c.decoder.Decode(word).String()

	victim := c.directory.FindVictim(addr)
	if victim == nil {
		return text
	}
	if victim.IsValid {
		c.stats.Evictions++
	}

	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false
	c.text[c.blockIndex(victim)] = text
	c.directory.Visit(victim)

	return text
}

// Reset drops every entry and clears the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	clear(c.text)
	c.stats = CacheStatistics{}
}
