package scrip

import (
	"context"
	"sync/atomic"
	"time"

	"main/internal/model"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// Fetcher downloads a full scrip-master snapshot.
type Fetcher func(ctx context.Context) ([]model.CatalogRow, error)

// Catalog caches the latest scrip-master snapshot. The snapshot is replaced
// wholesale on refresh; a failed refresh keeps serving the previous one.
type Catalog struct {
	rows atomic.Value // []model.CatalogRow
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.rows.Store([]model.CatalogRow(nil))
	return c
}

// Replace swaps in a new snapshot.
func (c *Catalog) Replace(rows []model.CatalogRow) {
	c.rows.Store(rows)
}

// Rows returns the current snapshot.
func (c *Catalog) Rows() []model.CatalogRow {
	rows, _ := c.rows.Load().([]model.CatalogRow)
	return rows
}

// Len returns the number of cached rows.
func (c *Catalog) Len() int {
	return len(c.Rows())
}

// Refresh fetches a snapshot and swaps it in. On failure the previous
// snapshot keeps serving and the error is returned.
func (c *Catalog) Refresh(ctx context.Context, fetch Fetcher) error {
	rows, err := fetch(ctx)
	if err != nil {
		return err
	}

	c.Replace(rows)
	logs.Infof("scrip master refreshed: %d instruments", len(rows))
	return nil
}

// RunRefresher refreshes the catalog on a fixed cadence until the context
// is done. The initial load is the caller's responsibility.
func (c *Catalog) RunRefresher(ctx context.Context, interval time.Duration, fetch Fetcher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, fetch); err != nil {
				logs.Errorf("scrip master refresh failed, serving stale snapshot, err: %+v", err)
			}
		}
	}
}
