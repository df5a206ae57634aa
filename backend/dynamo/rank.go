package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/store"
)

// RankKey encodes rank and creation time into a string whose lexicographic
// order is (rank, created) numeric order, for the rank index sort key.
func RankKey(rank, created int64) string {
	return fmt.Sprintf("%020d#%020d", uint64(rank)^(1<<63), uint64(created)^(1<<63))
}

// RecordRank implements store.Ranker. A record pending expiry (one with a
// TTL) is left alone until DynamoDB deletes it. After that the next write
// recreates the record, and the stream handler prunes it again if its rank
// is still below the threshold.
func (b *Backend) RecordRank(ctx context.Context, parentID string, entry store.RankEntry) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(b.config.RankTable),
		Key: map[string]types.AttributeValue{
			"pk":       &types.AttributeValueMemberS{Value: shard.RankPK(parentID, entry.ID, b.config.NumShards)},
			"child_id": &types.AttributeValueMemberS{Value: entry.ID},
		},
		UpdateExpression:    aws.String("SET #rank = :rank, #created = :created, #rank_key = :rank_key, #parent_id = :parent_id"),
		ConditionExpression: aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#rank":      "rank",
			"#created":   "created",
			"#rank_key":  "rank_key",
			"#parent_id": "parent_id",
			"#ttl":       "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rank":      &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.Rank, 10)},
			":created":   &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.Created, 10)},
			":rank_key":  &types.AttributeValueMemberS{Value: RankKey(entry.Rank, entry.Created)},
			":parent_id": &types.AttributeValueMemberS{Value: parentID},
		},
	})

	// Ignore condition failure - already pruned
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// TopByRank implements store.Ranker. Each shard is queried in descending
// rank_key order for its own top entries; the shards are merged client-side.
func (b *Backend) TopByRank(ctx context.Context, parentID string, limit int) ([]store.RankEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	numShards := b.config.NumShards
	if numShards < 1 {
		numShards = 1
	}

	// Fast path for single shard (default)
	if numShards == 1 {
		return b.queryShard(ctx, shard.PK(parentID, 0), limit)
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var all []store.RankEntry
	var wg sync.WaitGroup
	errs := make(chan error, numShards)

	for shardNum := 0; shardNum < numShards; shardNum++ {
		wg.Add(1)
		go func(shardNum int) {
			defer wg.Done()

			entries, err := b.queryShard(ctx, shard.PK(parentID, shardNum), limit)
			if err != nil {
				errs <- fmt.Errorf("shard %02x: %w", shardNum, err)
				return
			}

			mu.Lock()
			all = append(all, entries...)
			mu.Unlock()
		}(shardNum)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// queryShard returns up to limit live entries of one shard, best first.
func (b *Backend) queryShard(ctx context.Context, shardPK string, limit int) ([]store.RankEntry, error) {
	values := ttlFilterValues()
	values[":pk"] = &types.AttributeValueMemberS{Value: shardPK}

	paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
		TableName:                 aws.String(b.config.RankTable),
		IndexName:                 aws.String(b.config.RankIndex),
		KeyConditionExpression:    aws.String("pk = :pk"),
		FilterExpression:          aws.String(TTLFilterExpr()),
		ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(min(limit, 1000))),
	})

	var entries []store.RankEntry
	for paginator.HasMorePages() && len(entries) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if IsDeleted(item) {
				continue
			}
			entry, err := unmarshalRankEntry(item)
			if err != nil {
				return nil, fmt.Errorf("decode rank item: %w", err)
			}
			entries = append(entries, entry)
			if len(entries) == limit {
				break
			}
		}
	}

	// rank_key orders equal (rank, created) pairs arbitrarily.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
	return entries, nil
}

// SetRankTTL prunes a rank record by setting its TTL.
func (b *Backend) SetRankTTL(ctx context.Context, shardPK, childID string, ttl int64) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(b.config.RankTable),
		Key: map[string]types.AttributeValue{
			"pk":       &types.AttributeValueMemberS{Value: shardPK},
			"child_id": &types.AttributeValueMemberS{Value: childID},
		},
		UpdateExpression:    aws.String("SET #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(ttl, 10),
			},
		},
	})

	// Ignore condition failure - already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// rankRecord is the item shape of the rank table.
type rankRecord struct {
	ChildID string `dynamodbav:"child_id"`
	Rank    int64  `dynamodbav:"rank"`
	Created int64  `dynamodbav:"created"`
}

// unmarshalRankEntry converts a rank item to a store.RankEntry.
func unmarshalRankEntry(item map[string]types.AttributeValue) (store.RankEntry, error) {
	var rec rankRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return store.RankEntry{}, err
	}
	return store.RankEntry{ID: rec.ChildID, Rank: rec.Rank, Created: rec.Created}, nil
}
