package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// failingStore fails selected operations, keyed "op:collection".
type failingStore struct {
	docstore.Store
	failOn map[string]bool
}

func (s *failingStore) fails(op, collection string) bool {
	return s.failOn[op+":"+collection]
}

func (s *failingStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if s.fails("get", collection) {
		return nil, errBoom
	}
	return s.Store.Get(ctx, collection, id)
}

func (s *failingStore) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if s.fails("scan", collection) {
		return nil, errBoom
	}
	return s.Store.Scan(ctx, collection)
}

func (s *failingStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if s.fails("insert", collection) {
		return "", errBoom
	}
	return s.Store.Insert(ctx, collection, doc)
}

func (s *failingStore) Put(ctx context.Context, collection, id string, doc any) error {
	if s.fails("put", collection) {
		return errBoom
	}
	return s.Store.Put(ctx, collection, id, doc)
}

// failingIndex fails AddToIndex for index names starting with any of failOn.
type failingIndex struct {
	docstore.Index
	failOn []string
}

func (i *failingIndex) AddToIndex(ctx context.Context, name, id string) error {
	for _, prefix := range i.failOn {
		if strings.HasPrefix(name, prefix) {
			return errBoom
		}
	}
	return i.Index.AddToIndex(ctx, name, id)
}

type fixture struct {
	repo   *Repository
	mem    *docstore.Memory
	docs   *failingStore
	idx    *failingIndex
	events *events.Recorder

	alice *session.Session
	bob   *session.Session
	carol *session.Session
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, indexed bool) *fixture {
	t.Helper()

	mem := docstore.NewMemory()
	docs := &failingStore{Store: mem, failOn: map[string]bool{}}
	idx := &failingIndex{Index: mem}
	rec := &events.Recorder{}

	tick := 0
	opts := []Option{
		WithPublisher(rec),
		WithNewUserRoles(models.AllRoles()),
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}),
	}
	if indexed {
		opts = append(opts, WithIndex(idx))
	}

	f := &fixture{repo: New(docs, opts...), mem: mem, docs: docs, idx: idx, events: rec}
	f.alice = f.login(t, "alice@example.com")
	f.bob = f.login(t, "bob@example.com")
	f.carol = f.login(t, "carol@example.com")
	return f
}

// eachMode runs fn against a scanning and an indexed repository.
func eachMode(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, mode := range []struct {
		name    string
		indexed bool
	}{{"scan", false}, {"index", true}} {
		t.Run(mode.name, func(t *testing.T) {
			fn(t, newFixture(t, mode.indexed))
		})
	}
}

func (f *fixture) login(t *testing.T, email string) *session.Session {
	t.Helper()
	u, err := f.repo.Login(context.Background(), email)
	require.NoError(t, err)
	return session.New(*u)
}

func (f *fixture) product(t *testing.T, sess *session.Session, name, price string, live bool) models.Product {
	t.Helper()
	in := ProductInput{
		Name:     name,
		Category: "Electronics",
		Price:    decimal.RequireFromString(price),
	}
	if live {
		in.Status = string(models.ProductStatusLive)
	}
	p, err := f.repo.CreateProduct(context.Background(), sess, in)
	require.NoError(t, err)
	return *p
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, id(v))
	}
	return out
}

func productIDs(ps []models.Product) []string {
	return ids(ps, func(p models.Product) string { return p.ID })
}

func orderIDs(os []models.Order) []string {
	return ids(os, func(o models.Order) string { return o.ID })
}
