//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/grove/backend/dynamo"
	"github.com/jacentio/grove/board"
	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/post"
	"github.com/jacentio/grove/store"
)

// Table names - unique per test run to avoid conflicts
const tablePrefix = "grove-e2e-test"

var (
	testID    string
	tableCfg  dynamo.Config
	ddbClient *dynamodb.Client
	backend   *dynamo.Backend
	testStore *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	// Generate unique test ID
	testID = uuid.New().String()[:8]
	tableCfg = dynamo.Config{
		Table:     fmt.Sprintf("%s-%s-kv", tablePrefix, testID),
		RankTable: fmt.Sprintf("%s-%s-ranks", tablePrefix, testID),
		RankIndex: "rank-index",
		NumShards: 4,
	}

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Tables:\n")
	fmt.Printf("  - KV: %s\n", tableCfg.Table)
	fmt.Printf("  - Ranks: %s\n", tableCfg.RankTable)

	// Initialize AWS client (uses AWS_PROFILE / AWS_REGION from the environment)
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg)

	fmt.Println("Creating test tables...")
	if err := dynamo.CreateTables(ctx, ddbClient, tableCfg); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		deleteTables(ctx)
		os.Exit(1)
	}
	fmt.Println("All tables created and active")

	backend = dynamo.New(ddbClient, tableCfg)
	testStore = store.New(backend, store.DefaultConfig())

	// Run tests
	code := m.Run()

	deleteTables(ctx)

	os.Exit(code)
}

func deleteTables(ctx context.Context) {
	fmt.Println("Deleting test tables...")

	for _, tableName := range []string{tableCfg.Table, tableCfg.RankTable} {
		_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", tableName, err)
		}
	}

	fmt.Println("Tables deleted")
}

// --- Backend Tests ---

func TestBackend_SetGet(t *testing.T) {
	ctx := context.Background()
	path := "e2e/" + uuid.NewString()

	if _, err := backend.Get(ctx, path); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := backend.Set(ctx, path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := backend.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("expected stored value, got %s", got)
	}
}

func TestBackend_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	path := "e2e/" + uuid.NewString()

	if err := backend.Update(ctx, path, map[string]json.RawMessage{"a": json.RawMessage(`1`)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := backend.Update(ctx, path, map[string]json.RawMessage{"b": json.RawMessage(`"x"`)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := backend.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(got, &fields); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if fields["a"] != float64(1) || fields["b"] != "x" {
		t.Errorf("expected both fields, got %v", fields)
	}
}

func TestBackend_InsertExists(t *testing.T) {
	ctx := context.Background()
	path := "e2e/" + uuid.NewString()

	if err := backend.Insert(ctx, path, []byte(`"first"`)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := backend.Insert(ctx, path, []byte(`"second"`)); !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, _ := backend.Get(ctx, path)
	if string(got) != `"first"` {
		t.Errorf("expected first writer to win, got %s", got)
	}
}

// --- Rank Tests ---

func TestRank_TopByRankAcrossShards(t *testing.T) {
	ctx := context.Background()
	parentID := uuid.NewString()

	entries := []store.RankEntry{
		{ID: "a", Rank: -3, Created: 1},
		{ID: "b", Rank: 5, Created: 2},
		{ID: "c", Rank: 0, Created: 3},
		{ID: "d", Rank: 5, Created: 4},
		{ID: "e", Rank: 1, Created: 5},
	}
	for _, e := range entries {
		if err := backend.RecordRank(ctx, parentID, e); err != nil {
			t.Fatalf("RecordRank failed: %v", err)
		}
	}

	top, err := backend.TopByRank(ctx, parentID, 3)
	if err != nil {
		t.Fatalf("TopByRank failed: %v", err)
	}
	expected := []string{"d", "b", "e"}
	if len(top) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(top))
	}
	for i, id := range expected {
		if top[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, top[i].ID)
		}
	}
}

func TestRank_PrunedStaysPruned(t *testing.T) {
	ctx := context.Background()
	parentID := uuid.NewString()

	if err := backend.RecordRank(ctx, parentID, store.RankEntry{ID: "low", Rank: -20, Created: 1}); err != nil {
		t.Fatalf("RecordRank failed: %v", err)
	}
	if err := backend.RecordRank(ctx, parentID, store.RankEntry{ID: "ok", Rank: 0, Created: 2}); err != nil {
		t.Fatalf("RecordRank failed: %v", err)
	}

	pk := shard.RankPK(parentID, "low", tableCfg.NumShards)
	if err := backend.SetRankTTL(ctx, pk, "low", time.Now().Add(-time.Minute).Unix()); err != nil {
		t.Fatalf("SetRankTTL failed: %v", err)
	}

	// A later rank write must not resurrect the entry.
	if err := backend.RecordRank(ctx, parentID, store.RankEntry{ID: "low", Rank: 50, Created: 1}); err != nil {
		t.Fatalf("RecordRank failed: %v", err)
	}

	top, err := backend.TopByRank(ctx, parentID, 10)
	if err != nil {
		t.Fatalf("TopByRank failed: %v", err)
	}
	if len(top) != 1 || top[0].ID != "ok" {
		t.Errorf("expected only the live entry, got %v", top)
	}
}

// --- Store and Board Tests ---

func TestStore_UpdateReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := post.CreateRoot("E2E root")

	results, err := testStore.Update(ctx, []string{root.ID}, func(read []*post.Post) []*post.Post {
		if read[0] != nil {
			t.Errorf("expected fresh id to be absent")
		}
		return []*post.Post{&root}
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	written, ok := results.Get(root.ID)
	if !ok || written.Post.URL == "" {
		t.Fatalf("expected written post with slug, got %+v", written)
	}

	got := testStore.Read(ctx, []string{root.ID})[0]
	if got == nil {
		t.Fatal("expected post to be readable")
	}
	if got.Content != root.Content || got.URL != written.Post.URL {
		t.Errorf("unexpected post %+v", got)
	}

	id, err := testStore.Lookup(ctx, written.Post.URL, store.IndexURL)
	if err != nil || id != root.ID {
		t.Errorf("expected slug to resolve to %s, got %s, %v", root.ID, id, err)
	}
}

func TestBoard_Scenario(t *testing.T) {
	ctx := context.Background()
	b := board.New(testStore, nil)

	rootID, err := b.EnsureRoot(ctx, "", "Scenario root")
	if err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}

	alice := "alice-" + testID
	bob := "bob-" + testID

	a, err := b.CreatePost(ctx, rootID, alice, "Alice", post.All)
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	bp, err := b.CreatePost(ctx, rootID, bob, "Bob", post.All)
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	if err := b.RewardPost(ctx, bp, alice, post.Upvote); err != nil {
		t.Fatalf("RewardPost failed: %v", err)
	}
	if err := b.RewardPost(ctx, bp, alice, post.Upvote); err != nil {
		t.Fatalf("RewardPost failed: %v", err)
	}

	children, err := b.Children(ctx, rootID, 0, 10)
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 2 || children[0].ID != bp || children[1].ID != a {
		t.Fatalf("expected [%s %s], got %+v", bp, a, children)
	}
	if children[0].Reward != 1 {
		t.Errorf("expected reward 1 after repeated vote, got %d", children[0].Reward)
	}
}
