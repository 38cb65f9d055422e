package reconcile

import (
	"context"
	"log"
	"time"

	"kasirkita/pos/internal/cache"
	"kasirkita/pos/internal/entity"
	"kasirkita/pos/internal/queue"
	"kasirkita/pos/internal/remote"
)

const catalogCacheKey = "pos:catalog:products"

// InitialLoad restores local state from disk and, when it is safe to do
// so, refreshes the catalog from the remote store. The remote snapshot
// is skipped while the mutation queue is non-empty: local state carries
// changes the server has not seen yet, and overwriting it would lose
// them. Remote failures here are never fatal; the terminal starts on
// whatever it has.
func InitialLoad(ctx context.Context, entities *entity.Store, q *queue.Queue, rs remote.Store, catalog cache.CatalogCache, ttl time.Duration) error {
	if err := entities.Restore(); err != nil {
		return err
	}
	if err := q.Restore(); err != nil {
		return err
	}

	if q.Len() > 0 {
		log.Printf("[reconcile] %d pending mutations, skipping remote catalog load", q.Len())
		return nil
	}
	if err := rs.Ping(ctx); err != nil {
		log.Printf("[reconcile] remote store unreachable, starting from local snapshot: %v", err)
		return nil
	}

	if catalog != nil {
		if products, ok, err := catalog.Get(ctx, catalogCacheKey); err == nil && ok {
			if err := entities.SeedProducts(products); err != nil {
				return err
			}
			log.Printf("[reconcile] catalog loaded from cache (%d products)", len(products))
			return nil
		}
	}

	products, err := rs.ListProducts(ctx)
	if err != nil {
		log.Printf("[reconcile] remote catalog load failed, using local snapshot: %v", err)
		return nil
	}
	customers, err := rs.ListCustomers(ctx)
	if err != nil {
		log.Printf("[reconcile] remote customer load failed, using local snapshot: %v", err)
		return nil
	}
	sales, err := rs.ListSales(ctx)
	if err != nil {
		log.Printf("[reconcile] remote sales load failed, using local snapshot: %v", err)
		return nil
	}

	if err := entities.Seed(products, customers, sales); err != nil {
		return err
	}
	if catalog != nil {
		if err := catalog.Set(ctx, catalogCacheKey, products, ttl); err != nil {
			log.Printf("[reconcile] catalog cache set failed: %v", err)
		}
	}
	log.Printf("[reconcile] catalog loaded from remote (%d products, %d customers, %d sales)", len(products), len(customers), len(sales))
	return nil
}
