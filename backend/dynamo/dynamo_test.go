package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/store"
)

// fakeAPI records requests and answers them from canned data.
type fakeAPI struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	queries map[string][]map[string]types.AttributeValue
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	putErr  error
	updErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items:   map[string]map[string]types.AttributeValue{},
		queries: map[string][]map[string]types.AttributeValue{},
	}
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Key["pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.updErr
}

func (f *fakeAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.QueryOutput{Items: f.queries[pk]}, nil
}

func rankItem(id string, rank, created int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"child_id": &types.AttributeValueMemberS{Value: id},
		"rank":     &types.AttributeValueMemberN{Value: strconv.FormatInt(rank, 10)},
		"created":  &types.AttributeValueMemberN{Value: strconv.FormatInt(created, 10)},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Table != "grove_kv" {
		t.Errorf("expected Table grove_kv, got %s", cfg.Table)
	}
	if cfg.RankTable != "grove_ranks" {
		t.Errorf("expected RankTable grove_ranks, got %s", cfg.RankTable)
	}
	if cfg.NumShards != 1 {
		t.Errorf("expected NumShards 1, got %d", cfg.NumShards)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		numShards int
		expected  int
	}{
		{"zero", 0, 1},
		{"negative", -5, 1},
		{"valid", 16, 16},
		{"too large", 1000, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{NumShards: tt.numShards}
			cfg.validate()
			if cfg.NumShards != tt.expected {
				t.Errorf("expected NumShards %d, got %d", tt.expected, cfg.NumShards)
			}
			if cfg.Table == "" || cfg.RankTable == "" || cfg.RankIndex == "" {
				t.Errorf("expected table names to be filled in, got %+v", cfg)
			}
		})
	}
}

func TestRankKey_Order(t *testing.T) {
	pairs := [][2]int64{
		{-1 << 40, 5},
		{-100, 1},
		{-1, 9},
		{0, 0},
		{0, 1},
		{1, -3},
		{1, 2},
		{42, 7},
		{1 << 40, 0},
	}

	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = RankKey(p[0], p[1])
	}
	if !sort.StringsAreSorted(keys) {
		t.Errorf("expected rank keys in numeric order, got %v", keys)
	}
}

func TestMapInsertError(t *testing.T) {
	if err := mapInsertError(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	cond := &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	if err := mapInsertError(cond); !errors.Is(err, store.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}

	other := errors.New("throttled")
	if err := mapInsertError(other); err != other {
		t.Errorf("expected error to pass through, got %v", err)
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected map[string]any
		notFound bool
	}{
		{
			name:     "empty item",
			item:     map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "x"}},
			notFound: true,
		},
		{
			name: "doc only",
			item: map[string]types.AttributeValue{
				"doc": &types.AttributeValueMemberB{Value: []byte(`{"a":1}`)},
			},
			expected: map[string]any{"a": float64(1)},
		},
		{
			name: "fields only",
			item: map[string]types.AttributeValue{
				"f_a": &types.AttributeValueMemberS{Value: `"x"`},
				"f_b": &types.AttributeValueMemberS{Value: `2`},
			},
			expected: map[string]any{"a": "x", "b": float64(2)},
		},
		{
			name: "fields over doc",
			item: map[string]types.AttributeValue{
				"doc": &types.AttributeValueMemberB{Value: []byte(`{"a":1,"c":3}`)},
				"f_a": &types.AttributeValueMemberS{Value: `9`},
			},
			expected: map[string]any{"a": float64(9), "c": float64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := valueOf(tt.item)
			if tt.notFound {
				if !errors.Is(err, store.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("expected %s=%v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	b := New(newFakeAPI(), DefaultConfig())

	_, err := b.Get(context.Background(), "posts/missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetThenGet(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	if err := b.Set(context.Background(), "posts/p1", []byte(`{"id":"p1"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(api.puts))
	}
	put := api.puts[0]
	if aws.ToString(put.TableName) != "grove_kv" {
		t.Errorf("expected table grove_kv, got %s", aws.ToString(put.TableName))
	}
	if put.ConditionExpression != nil {
		t.Errorf("expected unconditional put, got %s", aws.ToString(put.ConditionExpression))
	}

	api.items["posts/p1"] = put.Item
	got, err := b.Get(context.Background(), "posts/p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"id":"p1"}` {
		t.Errorf("expected stored doc, got %s", got)
	}
}

func TestUpdate_FieldAttributes(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	err := b.Update(context.Background(), "children/root", map[string]json.RawMessage{
		"b": json.RawMessage(`{"rank":1}`),
		"a": json.RawMessage(`{"rank":2}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := api.updates[0]
	if aws.ToString(upd.UpdateExpression) != "SET #attr0 = :val0, #attr1 = :val1" {
		t.Errorf("unexpected update expression %q", aws.ToString(upd.UpdateExpression))
	}
	if upd.ExpressionAttributeNames["#attr0"] != "f_a" || upd.ExpressionAttributeNames["#attr1"] != "f_b" {
		t.Errorf("expected sorted field attribute names, got %v", upd.ExpressionAttributeNames)
	}
	if v := upd.ExpressionAttributeValues[":val1"].(*types.AttributeValueMemberS).Value; v != `{"rank":1}` {
		t.Errorf("expected raw JSON value, got %s", v)
	}
}

func TestUpdate_NoFields(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	if err := b.Update(context.Background(), "x", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.updates) != 0 {
		t.Errorf("expected no request, got %d", len(api.updates))
	}
}

func TestPush_ReturnsKey(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	key, err := b.Push(context.Background(), "created/h", []byte(`"p1"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.updates[0].ExpressionAttributeNames["#attr0"] != "f_"+key {
		t.Errorf("expected pushed key %s as attribute, got %v", key, api.updates[0].ExpressionAttributeNames)
	}
}

func TestInsert_Conditional(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	if err := b.Insert(context.Background(), "urls/slug", []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aws.ToString(api.puts[0].ConditionExpression) != "attribute_not_exists(pk)" {
		t.Errorf("expected conditional put, got %q", aws.ToString(api.puts[0].ConditionExpression))
	}

	api.putErr = &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	if err := b.Insert(context.Background(), "urls/slug", []byte(`{}`)); !errors.Is(err, store.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestRecordRank(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	entry := store.RankEntry{ID: "c1", Rank: -3, Created: 77}
	if err := b.RecordRank(context.Background(), "root", entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := api.updates[0]
	if aws.ToString(upd.TableName) != "grove_ranks" {
		t.Errorf("expected table grove_ranks, got %s", aws.ToString(upd.TableName))
	}
	if pk := upd.Key["pk"].(*types.AttributeValueMemberS).Value; pk != shard.PK("root", 0) {
		t.Errorf("expected pk %s, got %s", shard.PK("root", 0), pk)
	}
	if v := upd.ExpressionAttributeValues[":rank_key"].(*types.AttributeValueMemberS).Value; v != RankKey(-3, 77) {
		t.Errorf("expected rank key %s, got %s", RankKey(-3, 77), v)
	}
}

func TestRecordRank_PrunedIgnored(t *testing.T) {
	api := newFakeAPI()
	api.updErr = &types.ConditionalCheckFailedException{Message: aws.String("pruned")}
	b := New(api, DefaultConfig())

	if err := b.RecordRank(context.Background(), "root", store.RankEntry{ID: "c1"}); err != nil {
		t.Errorf("expected pruned record to be ignored, got %v", err)
	}
}

func TestRecordRank_Error(t *testing.T) {
	api := newFakeAPI()
	api.updErr = errors.New("throttled")
	b := New(api, DefaultConfig())

	if err := b.RecordRank(context.Background(), "root", store.RankEntry{ID: "c1"}); err == nil {
		t.Error("expected error")
	}
}

func TestTopByRank_SingleShard(t *testing.T) {
	api := newFakeAPI()
	api.queries[shard.PK("root", 0)] = []map[string]types.AttributeValue{
		rankItem("a", 5, 1),
		rankItem("b", 2, 3),
		rankItem("c", 2, 2),
	}
	b := New(api, DefaultConfig())

	entries, err := b.TopByRank(context.Background(), "root", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("expected [a b], got %v", entries)
	}
}

func TestTopByRank_SkipsPruned(t *testing.T) {
	api := newFakeAPI()
	pruned := rankItem("gone", 9, 1)
	pruned["ttl"] = &types.AttributeValueMemberN{Value: "1"}
	api.queries[shard.PK("root", 0)] = []map[string]types.AttributeValue{
		pruned,
		rankItem("kept", 1, 1),
	}
	b := New(api, DefaultConfig())

	entries, err := b.TopByRank(context.Background(), "root", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "kept" {
		t.Errorf("expected only kept entry, got %v", entries)
	}
}

func TestTopByRank_MultiShardMerge(t *testing.T) {
	api := newFakeAPI()
	cfg := DefaultConfig()
	cfg.NumShards = 4

	children := []store.RankEntry{
		{ID: "c1", Rank: 1, Created: 1},
		{ID: "c2", Rank: 7, Created: 2},
		{ID: "c3", Rank: -2, Created: 3},
		{ID: "c4", Rank: 3, Created: 4},
		{ID: "c5", Rank: 3, Created: 5},
	}
	for _, c := range children {
		pk := shard.RankPK("root", c.ID, cfg.NumShards)
		api.queries[pk] = append(api.queries[pk], rankItem(c.ID, c.Rank, c.Created))
	}
	b := New(api, cfg)

	entries, err := b.TopByRank(context.Background(), "root", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"c2", "c5", "c4"}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, id := range expected {
		if entries[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, entries[i].ID)
		}
	}
}

func TestTopByRank_ZeroLimit(t *testing.T) {
	b := New(newFakeAPI(), DefaultConfig())

	entries, err := b.TopByRank(context.Background(), "root", 0)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected no entries and no error, got %v, %v", entries, err)
	}
}

func TestSetRankTTL(t *testing.T) {
	api := newFakeAPI()
	b := New(api, DefaultConfig())

	if err := b.SetRankTTL(context.Background(), "root#00", "c1", 1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upd := api.updates[0]
	if v := upd.ExpressionAttributeValues[":ttl"].(*types.AttributeValueMemberN).Value; v != "1234" {
		t.Errorf("expected ttl 1234, got %s", v)
	}

	api.updErr = &types.ConditionalCheckFailedException{Message: aws.String("has ttl")}
	if err := b.SetRankTTL(context.Background(), "root#00", "c1", 1234); err != nil {
		t.Errorf("expected existing TTL to be ignored, got %v", err)
	}
}

func TestIsDeleted(t *testing.T) {
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected bool
	}{
		{"no ttl", map[string]types.AttributeValue{}, false},
		{"past ttl", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "1"}}, true},
		{"future ttl", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "99999999999"}}, false},
		{"wrong type", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberS{Value: "1"}}, false},
		{"garbage", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeleted(tt.item); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
