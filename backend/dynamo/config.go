package dynamo

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// Table is the key-value table, keyed by "pk" (S).
	// Default: "grove_kv"
	Table string

	// RankTable holds one rank record per child, keyed by "pk" (S) and
	// "child_id" (S).
	// Default: "grove_ranks"
	RankTable string

	// RankIndex is the local secondary index of RankTable sorted by
	// "rank_key" (S).
	// Default: "rank-index"
	RankIndex string

	// NumShards is the number of partitions a parent's rank records are
	// spread over. Higher values increase write throughput on busy parents
	// but require more parallel queries per listing.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		Table:     "grove_kv",
		RankTable: "grove_ranks",
		RankIndex: "rank-index",
		NumShards: 1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "grove_kv"
	}
	if c.RankTable == "" {
		c.RankTable = "grove_ranks"
	}
	if c.RankIndex == "" {
		c.RankIndex = "rank-index"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
}
