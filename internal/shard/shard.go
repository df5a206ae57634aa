// Package shard provides shard key generation for the DynamoDB rank table.
package shard

import (
	"fmt"
	"hash/fnv"
)

// RankPK computes the sharded partition key for a child's rank record.
// With numShards=1, all children of a parent go to shard "00".
// With numShards>1, children are distributed across shards by childID hash.
func RankPK(parentID, childID string, numShards int) string {
	if numShards <= 1 {
		return PK(parentID, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childID))
	return PK(parentID, int(h.Sum32()%uint32(numShards)))
}

// PK returns the partition key of one shard of a parent's rank records.
func PK(parentID string, shard int) string {
	return fmt.Sprintf("%s#%02x", parentID, shard)
}

// Of extracts the parent id from a shard partition key.
func Of(pk string) string {
	for i := len(pk) - 1; i >= 0; i-- {
		if pk[i] == '#' {
			return pk[:i]
		}
	}
	return pk
}
