package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

// fakePubSub implements pubsubAPI for client tests.
type fakePubSub struct {
	connected  bool
	sendErr    error
	sent       []string
	subscribed map[string]func(Reading)
}

func (f *fakePubSub) IsConnected() bool { return f.connected }

func (f *fakePubSub) SendValue(feedKey, value string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, feedKey+"="+value)
	return nil
}

func (f *fakePubSub) Subscribe(feedKey string, handler func(Reading)) error {
	if f.subscribed == nil {
		f.subscribed = make(map[string]func(Reading))
	}
	f.subscribed[feedKey] = handler
	return nil
}

func (f *fakePubSub) Close() error { return nil }

// fakeREST implements restAPI for client tests.
type fakeREST struct {
	feeds  map[string]*Feed
	groups map[string]*Group

	getFeedErrs []error // consumed in order, nil entries mean success
	createErr   error
	dataErr     error

	lastReading *Reading
	lastErr     error
	listData    []Reading
	listErr     error

	created     []string
	dataWrites  []string
	getFeedCall int
}

func (f *fakeREST) GetFeed(ctx context.Context, key string) (*Feed, error) {
	if f.getFeedCall < len(f.getFeedErrs) {
		err := f.getFeedErrs[f.getFeedCall]
		f.getFeedCall++
		if err != nil {
			return nil, err
		}
	} else {
		f.getFeedCall++
	}
	if feed, ok := f.feeds[key]; ok {
		return feed, nil
	}
	return nil, ErrNotFound
}

func (f *fakeREST) CreateFeed(ctx context.Context, feed Feed, groupKey string) (*Feed, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.feeds == nil {
		f.feeds = make(map[string]*Feed)
	}
	created := feed
	f.feeds[feed.Key] = &created
	f.created = append(f.created, feed.Key)
	return &created, nil
}

func (f *fakeREST) GetGroup(ctx context.Context, key string) (*Group, error) {
	if group, ok := f.groups[key]; ok {
		return group, nil
	}
	return nil, ErrNotFound
}

func (f *fakeREST) CreateGroup(ctx context.Context, group Group) (*Group, error) {
	if f.groups == nil {
		f.groups = make(map[string]*Group)
	}
	created := group
	f.groups[group.Key] = &created
	return &created, nil
}

func (f *fakeREST) CreateData(ctx context.Context, feedKey, value string) error {
	if f.dataErr != nil {
		return f.dataErr
	}
	f.dataWrites = append(f.dataWrites, feedKey+"="+value)
	return nil
}

func (f *fakeREST) LastData(ctx context.Context, feedKey string) (*Reading, error) {
	if f.lastErr != nil {
		return nil, f.lastErr
	}
	return f.lastReading, nil
}

func (f *fakeREST) ListData(ctx context.Context, feedKey string, limit int) ([]Reading, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.listData) {
		return f.listData[:limit], nil
	}
	return f.listData, nil
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Account: "tester",
		Key:     "secret",
		Retry:   config.GatewayRetryConfig{Attempts: 3, DelayMS: 1},
	}
}

func newTestClient(pubsub *fakePubSub, rest *fakeREST) *Client {
	return newClient(pubsub, rest, testGatewayConfig(), nil)
}

func TestPublishPrefersPubSub(t *testing.T) {
	pubsub := &fakePubSub{connected: true}
	rest := &fakeREST{}
	client := newTestClient(pubsub, rest)

	if !client.Publish(context.Background(), "greenhouse.pump", "1") {
		t.Fatal("Publish() = false, want true")
	}
	if len(pubsub.sent) != 1 || pubsub.sent[0] != "greenhouse.pump=1" {
		t.Errorf("pubsub sent = %v, want one pump write", pubsub.sent)
	}
	if len(rest.dataWrites) != 0 {
		t.Errorf("rest received %v, want none", rest.dataWrites)
	}
}

func TestPublishFallsBackToREST(t *testing.T) {
	tests := []struct {
		name   string
		pubsub *fakePubSub
	}{
		{"disconnected", &fakePubSub{connected: false}},
		{"send failure", &fakePubSub{connected: true, sendErr: ErrPublishFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest := &fakeREST{}
			client := newTestClient(tt.pubsub, rest)

			if !client.Publish(context.Background(), "greenhouse.pump", "0") {
				t.Fatal("Publish() = false, want true via rest fallback")
			}
			if len(rest.dataWrites) != 1 || rest.dataWrites[0] != "greenhouse.pump=0" {
				t.Errorf("rest writes = %v, want one pump write", rest.dataWrites)
			}
		})
	}
}

func TestPublishBothTransportsFail(t *testing.T) {
	pubsub := &fakePubSub{connected: true, sendErr: ErrPublishFailed}
	rest := &fakeREST{dataErr: ErrUnavailable}
	client := newTestClient(pubsub, rest)

	if client.Publish(context.Background(), "greenhouse.pump", "1") {
		t.Fatal("Publish() = true, want false when both transports fail")
	}
}

func TestEnsureFeedExisting(t *testing.T) {
	rest := &fakeREST{feeds: map[string]*Feed{
		"greenhouse.pump": {Key: "greenhouse.pump", Name: "Pump"},
	}}
	client := newTestClient(&fakePubSub{}, rest)

	binding, err := client.EnsureFeed(context.Background(), "greenhouse.pump", "Pump", "", "greenhouse")
	if err != nil {
		t.Fatalf("EnsureFeed() error = %v", err)
	}
	if binding.FeedKey != "greenhouse.pump" {
		t.Errorf("FeedKey = %q, want greenhouse.pump", binding.FeedKey)
	}
	if len(rest.created) != 0 {
		t.Errorf("created %v, want no creation for existing feed", rest.created)
	}
}

func TestEnsureFeedCreatesMissing(t *testing.T) {
	rest := &fakeREST{}
	client := newTestClient(&fakePubSub{}, rest)

	binding, err := client.EnsureFeed(context.Background(), "greenhouse.moisture", "Moisture", "soil moisture", "greenhouse")
	if err != nil {
		t.Fatalf("EnsureFeed() error = %v", err)
	}
	if binding.FeedKey != "greenhouse.moisture" {
		t.Errorf("FeedKey = %q, want greenhouse.moisture", binding.FeedKey)
	}
	if len(rest.created) != 1 {
		t.Fatalf("created = %v, want exactly one feed", rest.created)
	}
	if _, ok := rest.groups["greenhouse"]; !ok {
		t.Error("group greenhouse not created")
	}
}

func TestEnsureFeedRetriesTransient(t *testing.T) {
	rest := &fakeREST{
		feeds:       map[string]*Feed{"greenhouse.pump": {Key: "greenhouse.pump"}},
		getFeedErrs: []error{ErrUnavailable, ErrRateLimited, nil},
	}
	client := newTestClient(&fakePubSub{}, rest)

	if _, err := client.EnsureFeed(context.Background(), "greenhouse.pump", "Pump", "", ""); err != nil {
		t.Fatalf("EnsureFeed() error = %v, want success after retries", err)
	}
	if rest.getFeedCall != 3 {
		t.Errorf("GetFeed calls = %d, want 3", rest.getFeedCall)
	}
}

func TestEnsureFeedUnauthorizedIsFatal(t *testing.T) {
	rest := &fakeREST{getFeedErrs: []error{ErrUnauthorized, ErrUnauthorized}}
	client := newTestClient(&fakePubSub{}, rest)

	_, err := client.EnsureFeed(context.Background(), "greenhouse.pump", "Pump", "", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("EnsureFeed() error = %v, want ErrUnauthorized", err)
	}
	if rest.getFeedCall != 1 {
		t.Errorf("GetFeed calls = %d, want 1 (no retry on auth failure)", rest.getFeedCall)
	}
}

func TestEnsureFeedCachesBinding(t *testing.T) {
	rest := &fakeREST{feeds: map[string]*Feed{"greenhouse.pump": {Key: "greenhouse.pump"}}}
	client := newTestClient(&fakePubSub{}, rest)

	ctx := context.Background()
	if _, err := client.EnsureFeed(ctx, "greenhouse.pump", "Pump", "", ""); err != nil {
		t.Fatalf("first EnsureFeed() error = %v", err)
	}
	if _, err := client.EnsureFeed(ctx, "greenhouse.pump", "Pump", "", ""); err != nil {
		t.Fatalf("second EnsureFeed() error = %v", err)
	}
	if rest.getFeedCall != 1 {
		t.Errorf("GetFeed calls = %d, want 1 (second call served from cache)", rest.getFeedCall)
	}
}

func TestLatestUsesLastValueEndpoint(t *testing.T) {
	rest := &fakeREST{lastReading: &Reading{ID: "r1", Value: "42.5"}}
	client := newTestClient(&fakePubSub{}, rest)

	reading, err := client.Latest(context.Background(), "greenhouse.moisture")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if reading == nil || reading.Value != "42.5" {
		t.Errorf("Latest() = %+v, want value 42.5", reading)
	}
}

func TestLatestFallsBackToRangeRead(t *testing.T) {
	rest := &fakeREST{
		lastErr:  ErrUnavailable,
		listData: []Reading{{ID: "r2", Value: "17.0"}},
	}
	client := newTestClient(&fakePubSub{}, rest)

	reading, err := client.Latest(context.Background(), "greenhouse.moisture")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if reading == nil || reading.Value != "17.0" {
		t.Errorf("Latest() = %+v, want value 17.0 from range fallback", reading)
	}
}

func TestLatestEmptyFeed(t *testing.T) {
	rest := &fakeREST{lastErr: ErrNotFound}
	client := newTestClient(&fakePubSub{}, rest)

	reading, err := client.Latest(context.Background(), "greenhouse.moisture")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if reading != nil {
		t.Errorf("Latest() = %+v, want nil for empty feed", reading)
	}
}

func TestRegisterHandler(t *testing.T) {
	pubsub := &fakePubSub{}
	client := newTestClient(pubsub, &fakeREST{})

	var got Reading
	if err := client.RegisterHandler("greenhouse.pump", func(r Reading) { got = r }); err != nil {
		t.Fatalf("RegisterHandler() error = %v", err)
	}

	handler, ok := pubsub.subscribed["greenhouse.pump"]
	if !ok {
		t.Fatal("handler not registered with pubsub transport")
	}
	handler(Reading{Value: "1"})
	if got.Value != "1" {
		t.Errorf("handler received %q, want 1", got.Value)
	}
}
