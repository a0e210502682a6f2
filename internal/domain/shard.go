package domain

import "github.com/cespare/xxhash/v2"

// ShardOf assigns an instrument key to a shard in [0, totalShards) using
// xxHash64 over the UTF-8 bytes of the key. xxHash64 is stable across
// processes and platforms, so independent workers agree on the partition
// without coordination. totalShards <= 1 means everything lands in shard 0.
func ShardOf(instrumentKey string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(instrumentKey) % uint64(totalShards))
}

// InShard reports whether the key belongs to the given shard.
func InShard(instrumentKey string, shardIndex, totalShards int) bool {
	if totalShards <= 1 {
		return true
	}
	return ShardOf(instrumentKey, totalShards) == shardIndex
}
