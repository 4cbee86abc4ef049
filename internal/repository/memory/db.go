// Package memory provides in-process implementations of the model stores.
//
// A single DB holds every table so that cascades (deleting a product drops it
// from routines and user collections) stay consistent. Every mutation runs to
// completion under the write lock, so each store operation is atomic.
package memory

import (
	"sync"
	"time"

	"github.com/klari-app/klari-server/internal/model"
)

type activeKey struct {
	ownerID     int64
	routineType model.RoutineType
}

type userRecord struct {
	user        model.User
	collections map[model.Collection][]int64
}

type routineRecord struct {
	routine    model.Routine
	productIDs []int64
}

// DB is the shared in-memory state behind the memory repositories.
type DB struct {
	mu sync.RWMutex

	productSeq int64
	userSeq    int64
	routineSeq int64

	products      map[int64]model.Product
	users         map[int64]*userRecord
	emails        map[string]int64
	routines      map[int64]*routineRecord
	activeRoutine map[activeKey]int64
	refreshTokens map[string]model.RefreshToken

	now func() time.Time
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		products:      make(map[int64]model.Product),
		users:         make(map[int64]*userRecord),
		emails:        make(map[string]int64),
		routines:      make(map[int64]*routineRecord),
		activeRoutine: make(map[activeKey]int64),
		refreshTokens: make(map[string]model.RefreshToken),
		now:           time.Now,
	}
}

// Close is a no-op; it lets DB stand in for a connection in process wiring.
func (db *DB) Close() error {
	return nil
}

// summaries resolves product ids to summaries, skipping ids no longer in the catalog.
// Callers must hold mu.
func (db *DB) summaries(ids []int64) []model.ProductSummary {
	out := make([]model.ProductSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := db.products[id]; ok {
			out = append(out, p.Summary())
		}
	}
	return out
}
