// Package stream provides DynamoDB Streams handlers for the rank table.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/grove/internal/shard"
)

// Pruner sets the TTL of a rank record. It is implemented by
// *dynamo.Backend.
type Pruner interface {
	SetRankTTL(ctx context.Context, shardPK, childID string, ttl int64) error
}

// Config holds configuration for the prune handler.
type Config struct {
	// PruneBelow is the rank below which a child is dropped from listings.
	// Default: -10
	PruneBelow int64

	// Delay is how long a pruned record stays in the table before DynamoDB
	// expires it. Listings hide it as soon as it expires.
	// Default: 0 (expire immediately)
	Delay time.Duration
}

// DefaultConfig returns the default pruning policy.
func DefaultConfig() Config {
	return Config{
		PruneBelow: -10,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Delay < 0 {
		c.Delay = 0
	}
}

// Handler processes DynamoDB stream events of the rank table.
type Handler struct {
	pruner Pruner
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a new stream handler.
func NewHandler(p Pruner, config Config, logger *slog.Logger) *Handler {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pruner: p,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// HandlePrune processes DynamoDB stream events and prunes children whose
// rank newly dropped below the threshold. Post records are never touched.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandlePrune(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, &record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != "INSERT" && record.EventName != "MODIFY" {
		return nil
	}

	image := record.Change.NewImage

	// Already pruned
	if getNumberAttr(image, "ttl") != 0 {
		return nil
	}

	newRank := getNumberAttr(image, "rank")
	if newRank >= h.config.PruneBelow {
		return nil
	}
	if record.EventName == "MODIFY" {
		if _, ok := record.Change.OldImage["rank"]; ok && getNumberAttr(record.Change.OldImage, "rank") < h.config.PruneBelow {
			return nil
		}
	}

	shardPK := getStringAttr(image, "pk")
	childID := getStringAttr(image, "child_id")
	if shardPK == "" || childID == "" {
		return fmt.Errorf("rank record without key: pk=%q child_id=%q", shardPK, childID)
	}

	parentID := getStringAttr(image, "parent_id")
	if parentID == "" {
		parentID = shard.Of(shardPK)
	}
	ttl := h.now().Add(h.config.Delay).Unix()

	h.logger.Info("pruning child",
		"parentID", parentID,
		"childID", childID,
		"rank", newRank,
		"ttl", ttl,
	)

	if err := h.pruner.SetRankTTL(ctx, shardPK, childID, ttl); err != nil {
		return fmt.Errorf("set rank ttl: %w", err)
	}
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeString {
			return v.String()
		}
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
