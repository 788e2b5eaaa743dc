// Package store is the repository layer of the marketplace. Every operation
// reads and writes through a docstore.Store; when an Index is configured,
// filtered listings use it instead of scanning a whole collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/safar/sellanything/internal/database"
	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/sirupsen/logrus"
)

type Repository struct {
	docs         docstore.Store
	index        docstore.Index
	log          logrus.FieldLogger
	events       events.Publisher
	newUserRoles models.RoleSet
	now          func() time.Time

	// indexFailures counts index writes lost since the last RebuildIndex.
	// While it is non-zero listings scan instead of trusting the index.
	indexFailures atomic.Int64
}

type Option func(*Repository)

// WithIndex enables secondary index lookups. Without it listings scan.
func WithIndex(idx docstore.Index) Option {
	return func(r *Repository) { r.index = idx }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Repository) { r.log = log }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Repository) { r.events = p }
}

// WithNewUserRoles sets the roles granted to users created by Login.
func WithNewUserRoles(roles models.RoleSet) Option {
	return func(r *Repository) { r.newUserRoles = roles }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(docs docstore.Store, opts ...Option) *Repository {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Repository{
		docs:   docs,
		log:    discard,
		events: events.Noop{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fail logs a store failure and wraps it with msg.
func (r *Repository) fail(err error, msg string, fields logrus.Fields) error {
	r.log.WithFields(fields).
		WithField("error_class", database.ClassifyError(err).String()).
		WithError(err).
		Error(msg + " failed")
	return fmt.Errorf("%s: %w", msg, err)
}

// indexAdd records id under name. The document is already stored, so a
// failed write is logged and marks the index stale rather than failing the
// caller.
func (r *Repository) indexAdd(ctx context.Context, name, id string) {
	if r.index == nil {
		return
	}
	if err := r.index.AddToIndex(ctx, name, id); err != nil {
		r.indexFailures.Add(1)
		r.indexWarn(err, "index add", name, id)
	}
}

// indexRemove drops id from name. A leftover member is harmless: reads skip
// ids that no longer resolve and re-check every document.
func (r *Repository) indexRemove(ctx context.Context, name, id string) {
	if r.index == nil {
		return
	}
	if err := r.index.RemoveFromIndex(ctx, name, id); err != nil {
		r.indexWarn(err, "index remove", name, id)
	}
}

func (r *Repository) indexWarn(err error, msg, name, id string) {
	r.log.WithFields(logrus.Fields{"index": name, "doc_id": id}).
		WithField("error_class", database.ClassifyError(err).String()).
		WithError(err).
		Warn(msg + " failed")
}

// indexed reports whether listings may be served from the index.
func (r *Repository) indexed() bool {
	return r.index != nil && r.indexFailures.Load() == 0
}

// IndexStale reports whether an index write has been lost since the last
// successful RebuildIndex.
func (r *Repository) IndexStale() bool {
	return r.index != nil && r.indexFailures.Load() > 0
}

// RebuildIndex re-adds the index entries of every stored product, order and
// message. AddToIndex is idempotent, so it can run over a populated index.
// On success listings go back to the index, unless another write was lost
// while the rebuild ran. On failure the index is treated as stale.
func (r *Repository) RebuildIndex(ctx context.Context) error {
	if r.index == nil {
		return nil
	}
	lost := r.indexFailures.Load()

	n, err := r.rebuildIndex(ctx)
	if err != nil {
		r.indexFailures.Add(1)
		return err
	}

	r.indexFailures.CompareAndSwap(lost, 0)
	r.log.WithField("entries", n).Info("index rebuilt")
	return nil
}

func (r *Repository) rebuildIndex(ctx context.Context) (int, error) {
	var entries [][2]string

	products, err := docstore.ScanAs[models.Product](ctx, r.docs, models.CollectionProducts)
	if err != nil {
		return 0, r.fail(err, "rebuild index", logrus.Fields{"collection": models.CollectionProducts})
	}
	for _, p := range products {
		entries = append(entries, [2]string{sellerIndex(p.SellerID), p.ID})
	}

	orders, err := docstore.ScanAs[models.Order](ctx, r.docs, models.CollectionOrders)
	if err != nil {
		return 0, r.fail(err, "rebuild index", logrus.Fields{"collection": models.CollectionOrders})
	}
	for _, o := range orders {
		for _, name := range orderIndexes(&o) {
			entries = append(entries, [2]string{name, o.ID})
		}
	}

	msgs, err := docstore.ScanAs[models.Message](ctx, r.docs, models.CollectionMessages)
	if err != nil {
		return 0, r.fail(err, "rebuild index", logrus.Fields{"collection": models.CollectionMessages})
	}
	for _, m := range msgs {
		for _, name := range messageIndexes(&m) {
			entries = append(entries, [2]string{name, m.ID})
		}
	}

	for _, e := range entries {
		if err := r.index.AddToIndex(ctx, e[0], e[1]); err != nil {
			return 0, r.fail(err, "rebuild index", logrus.Fields{"index": e[0], "doc_id": e[1]})
		}
	}
	return len(entries), nil
}

// listBy returns the documents of collection that match keep. With a healthy
// index only the members of indexName are read; members that no longer
// resolve are skipped.
func listBy[T any](ctx context.Context, r *Repository, collection, indexName string, keep func(T) bool) ([]T, error) {
	if !r.indexed() {
		all, err := docstore.ScanAs[T](ctx, r.docs, collection)
		if err != nil {
			return []T{}, err
		}
		out := make([]T, 0, len(all))
		for _, v := range all {
			if keep(v) {
				out = append(out, v)
			}
		}
		return out, nil
	}

	ids, err := r.index.IndexMembers(ctx, indexName)
	if err != nil {
		return []T{}, err
	}
	return getMany(ctx, r, collection, ids, keep)
}

func getMany[T any](ctx context.Context, r *Repository, collection string, ids []string, keep func(T) bool) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := docstore.GetAs[T](ctx, r.docs, collection, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return []T{}, err
		}
		if keep(*v) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func sellerIndex(sellerID string) string { return "products.seller:" + sellerID }
func buyerIndex(buyerID string) string   { return "orders.buyer:" + buyerID }
func productIndex(productID string) string {
	return "orders.product:" + productID
}
func userIndex(userID string) string { return "messages.user:" + userID }

// pairIndex is the same for (a, b) and (b, a).
func pairIndex(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "messages.pair:" + a + ":" + b
}

func orderIndexes(o *models.Order) []string {
	names := []string{buyerIndex(o.BuyerID)}
	seen := map[string]bool{}
	for _, item := range o.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		names = append(names, productIndex(item.ProductID))
	}
	return names
}

func messageIndexes(m *models.Message) []string {
	names := []string{pairIndex(m.FromID, m.ToID), userIndex(m.FromID)}
	if m.ToID != m.FromID {
		names = append(names, userIndex(m.ToID))
	}
	return names
}
