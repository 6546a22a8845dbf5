package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/internal/repository"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

// fakeStore backs every service with in-memory data.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	prices  map[int64]*model.PriceRecord
	tallies map[int64]model.VoteTally
	bases   map[int64]*model.Base
	stores  []model.Store
	stats   map[int64]*model.ItemPriceStats
	history model.IPHistory
	recent  model.RecentActivity

	// known item and store ids; empty accepts any
	items     map[int64]bool
	storesIDs map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:  100,
		prices:  make(map[int64]*model.PriceRecord),
		tallies: make(map[int64]model.VoteTally),
		bases:   make(map[int64]*model.Base),
		stats:   make(map[int64]*model.ItemPriceStats),
	}
}

func (f *fakeStore) addPrice(p model.PriceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[p.ID] = &p
}

func (f *fakeStore) Create(_ context.Context, p *model.PriceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if (len(f.items) > 0 && !f.items[p.ItemID]) || (len(f.storesIDs) > 0 && !f.storesIDs[p.StoreID]) {
		return repository.ErrNotFound
	}
	f.nextID++
	p.ID = f.nextID
	stored := *p
	f.prices[p.ID] = &stored
	return nil
}

func (f *fakeStore) ListWithVotes(_ context.Context, itemID int64) ([]model.PriceWithVotes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PriceWithVotes
	for _, p := range f.prices {
		if p.ItemID == itemID {
			out = append(out, model.PriceWithVotes{Price: *p, Votes: f.tallies[p.ID]})
		}
	}
	return out, nil
}

func (f *fakeStore) FindBase(_ context.Context, baseID int64) (*model.Base, error) {
	b, ok := f.bases[baseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListLocated(context.Context) ([]model.Store, error) {
	return f.stores, nil
}

func (f *fakeStore) IPHistory(context.Context, string) (model.IPHistory, error) {
	return f.history, nil
}

func (f *fakeStore) RecentActivity(context.Context, string, time.Time) (model.RecentActivity, error) {
	return f.recent, nil
}

func (f *fakeStore) ItemStats(_ context.Context, itemID int64) (*model.ItemPriceStats, error) {
	s, ok := f.stats[itemID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) IncrementFlaggedCount(_ context.Context, priceID int64) (int, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[priceID]
	if !ok {
		return 0, nil, repository.ErrNotFound
	}
	p.FlaggedCount++
	return p.FlaggedCount, p.IPAddress, nil
}

func (f *fakeStore) Tally(_ context.Context, priceID int64) (model.VoteTally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tallies[priceID], nil
}

type fakeVotes struct{ *fakeStore }

func (f fakeVotes) Create(_ context.Context, priceID int64, isCorrect bool, _ *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prices[priceID]; !ok {
		return 0, repository.ErrNotFound
	}
	t := f.tallies[priceID]
	if isCorrect {
		t.Upvotes++
	} else {
		t.Downvotes++
	}
	f.tallies[priceID] = t
	f.nextID++
	return f.nextID, nil
}

type testEnv struct {
	app   *fiber.App
	store *fakeStore
	cache *service.MemoryCache
}

// newTestEnv wires the real services over fakeStore with a two request
// budget per window.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	cache := service.NewMemoryCache()

	trust := service.NewTrustService(store)
	gate := service.NewSubmissionGate(
		service.NewRateLimiter(cache, service.PriceRateLimitPrefix),
		trust,
		cache,
		service.GateConfig{Window: time.Minute, MaxSubmissions: 2, IPHashSalt: "test-salt"},
	)
	engine := service.NewScoringEngine()
	stats := service.NewStatsService(store, cache, time.Minute)
	prices := service.NewPriceService(store, store, gate, trust, engine, stats, cache, service.PriceConfig{
		ProximityRadiusMiles: 50,
		DistanceCacheTTL:     time.Minute,
	})
	votes := service.NewVoteService(
		fakeVotes{store},
		service.NewRateLimiter(cache, service.VoteRateLimitPrefix),
		time.Minute,
		2,
	)
	flags := service.NewFlagService(store, cache, 3, time.Hour)

	ph := NewPriceHandler(prices)
	vh := NewVoteHandler(votes)
	fh := NewFlagHandler(flags)
	sh := NewSecurityHandler(gate)
	st := NewStatsHandler(stats)

	app := fiber.New()
	app.Post("/api/prices", ph.Submit)
	app.Get("/api/items/:itemId/prices/best", ph.Best)
	app.Get("/api/items/:itemId/prices", ph.List)
	app.Get("/api/items/:itemId/stats", st.ItemStats)
	app.Post("/api/prices/:id/votes", vh.Cast)
	app.Post("/api/prices/:id/flag", fh.Flag)
	app.Get("/api/security/ip/:ip", sh.IPReport)

	return &testEnv{app: app, store: store, cache: cache}
}

func (e *testEnv) do(t *testing.T, method, path, body, ip string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func errorMessage(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	msg, _ := e["message"].(string)
	return msg
}

func seedPrices(store *fakeStore) {
	ip := "198.51.100.7"
	store.addPrice(model.PriceRecord{
		ID: 1, ItemID: 1, StoreID: 10,
		Price: decimal.RequireFromString("10.00"), Quantity: 1,
		Confidence: model.ConfidenceHigh,
	})
	store.addPrice(model.PriceRecord{
		ID: 2, ItemID: 1, StoreID: 11,
		Price: decimal.RequireFromString("8.00"), Quantity: 1,
		Confidence: model.ConfidenceMedium, IPAddress: &ip,
	})
}

func ptr[T any](v T) *T { return &v }
