package search

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

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/infrastructure/memory"
)

type seenRequest struct {
	method, path, query string
	body                map[string]any
}

type fakeES struct {
	mu     sync.Mutex
	seen   []seenRequest
	status int
	reply  string
	route  func(method, path string) int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.seen = append(f.seen, seenRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body})
	status, reply := f.status, f.reply
	if f.route != nil {
		if s := f.route(r.Method, r.URL.Path); s != 0 {
			status = s
		}
	}
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	if reply == "" {
		reply = `{"result":"ok"}`
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeES) last() seenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

func newIndex(t *testing.T) (*AccountIndex, *fakeES, *memory.EventStore) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	store := memory.NewEventStore()
	return NewAccountIndex(es, "accounts", store, nil), fake, store
}

func TestHandleIndexesWithExternalVersion(t *testing.T) {
	idx, fake, store := newIndex(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := store.Append(ctx, "acc-1", []event.Event{
		event.NewAccountCreated("acc-1", "Ann", "ann@x.io", "hash", []string{"ROLE_USER"}, nil, at),
		event.NewAccountApproved("acc-1", at),
	}, 0)
	require.NoError(t, err)

	require.NoError(t, idx.Handle(ctx, recs[0]))
	req := fake.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/accounts/_doc/acc-1", req.path)
	assert.Contains(t, req.query, "version=2")
	assert.Contains(t, req.query, "version_type=external")
	assert.Equal(t, "ann@x.io", req.body["email"])
	assert.Equal(t, true, req.body["approved"])
	assert.NotContains(t, req.body, "password_hash")

	fake.status, fake.reply = http.StatusConflict, `{"error":{"type":"version_conflict_engine_exception"}}`
	assert.NoError(t, idx.Handle(ctx, recs[1]), "older version conflict is not an error")

	fake.status, fake.reply = http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`
	assert.Error(t, idx.Handle(ctx, recs[1]))
}

func TestHandleDeletesRemovedAccount(t *testing.T) {
	idx, fake, store := newIndex(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := store.Append(ctx, "acc-1", []event.Event{
		event.NewAccountCreated("acc-1", "Ann", "ann@x.io", "hash", nil, nil, at),
		event.NewAccountDeleted("acc-1", at),
	}, 0)
	require.NoError(t, err)

	fake.status, fake.reply = http.StatusNotFound, `{"result":"not_found"}`
	require.NoError(t, idx.Handle(ctx, recs[1]))
	req := fake.last()
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/accounts/_doc/acc-1", req.path)
}

func TestHandleUnknownAggregateIsNoop(t *testing.T) {
	idx, fake, _ := newIndex(t)
	require.NoError(t, idx.Handle(context.Background(), event.Record{AggregateID: "ghost", Version: 1}))
	assert.Empty(t, fake.seen)
}

func TestSearchReturnsHitIDs(t *testing.T) {
	idx, fake, _ := newIndex(t)
	fake.reply = `{"hits":{"hits":[{"_id":"acc-2"},{"_id":"acc-1"}]}}`

	ids, err := idx.Search(context.Background(), "ann", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-2", "acc-1"}, ids)

	req := fake.last()
	assert.True(t, strings.HasSuffix(req.path, "/_search"))
	assert.EqualValues(t, 10, req.body["size"])

	fake.status, fake.reply = http.StatusInternalServerError, `{"error":"boom"}`
	_, err = idx.Search(context.Background(), "ann", 5)
	assert.Error(t, err)
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	idx, fake, _ := newIndex(t)
	fake.route = func(method, _ string) int {
		if method == http.MethodHead {
			return http.StatusNotFound
		}
		return 0
	}

	require.NoError(t, idx.EnsureIndex(context.Background()))
	req := fake.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/accounts", req.path)
	assert.Contains(t, req.body, "mappings")
}

func TestEnsureIndexKeepsExistingIndex(t *testing.T) {
	idx, fake, _ := newIndex(t)

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, fake.seen, 1)
	assert.Equal(t, http.MethodHead, fake.seen[0].method)
}
