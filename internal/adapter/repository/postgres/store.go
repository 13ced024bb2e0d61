package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so readers can run inside
// a mutation transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the PostgreSQL system of record. It implements domain.Store and
// the restaurant, menu and order readers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a Store over an open connection pool.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "postgres_store"),
		now:    time.Now,
		newID:  newID,
	}
}

// Apply runs spec in one transaction. On error nothing was committed and the
// error is a *domain.StoreError.
func (s *Store) Apply(ctx context.Context, spec domain.MutationSpec) (domain.Commit, error) {
	var commit domain.Commit
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		commit, err = s.apply(ctx, tx, spec)
		return err
	})
	if err != nil {
		if isNetworkError(err) {
			s.logger.Error("database unreachable", "mutation", spec.Mutation(), "error", err)
		}
		return domain.Commit{}, classify(err, spec.Entity(), subjectID(spec))
	}
	return commit, nil
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, spec domain.MutationSpec) (domain.Commit, error) {
	now := s.timestamp()
	switch m := spec.(type) {
	case domain.CreateRestaurant:
		return s.createRestaurant(ctx, tx, m, now)
	case domain.UpdateRestaurant:
		return s.updateRestaurant(ctx, tx, m, now)
	case domain.DeactivateRestaurant:
		return s.deactivateRestaurant(ctx, tx, m, now)
	case domain.CreateCategory:
		return s.createCategory(ctx, tx, m, now)
	case domain.UpdateCategory:
		return s.updateCategory(ctx, tx, m, now)
	case domain.DeleteCategory:
		return s.deleteCategory(ctx, tx, m)
	case domain.ReorderCategories:
		return s.reorderCategories(ctx, tx, m, now)
	case domain.CreateMenuItem:
		return s.createMenuItem(ctx, tx, m, now)
	case domain.UpdateMenuItem:
		return s.updateMenuItem(ctx, tx, m, now)
	case domain.SetMenuItemAvailability:
		return s.setMenuItemAvailability(ctx, tx, m, now)
	case domain.DeleteMenuItem:
		return s.deleteMenuItem(ctx, tx, m)
	case domain.CreateOrder:
		return s.createOrder(ctx, tx, m, now)
	case domain.UpdateOrderStatus:
		return s.updateOrderStatus(ctx, tx, m, now)
	default:
		return domain.Commit{}, fmt.Errorf("unsupported mutation %T", spec)
	}
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback is a no-op if Commit() is called

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Postgres keeps microseconds; truncating keeps the post-image equal to what
// a later read returns.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

const bumpScopeQuery = `
	INSERT INTO scope_versions (scope_id, version) VALUES ($1, $2)
	ON CONFLICT (scope_id) DO UPDATE SET version = scope_versions.version + EXCLUDED.version
	RETURNING version`

// changeSet collects the row changes of one transaction for a single scope
// and stamps them with consecutive sequence numbers.
type changeSet struct {
	scopeID string
	changes []domain.Change
}

func newChangeSet(scopeID string) *changeSet {
	return &changeSet{scopeID: scopeID}
}

func (c *changeSet) add(typ domain.EventType, entity domain.EntityType, entityID string, payload any) {
	c.changes = append(c.changes, domain.Change{
		Type:     typ,
		Entity:   entity,
		EntityID: entityID,
		ScopeID:  c.scopeID,
		Payload:  payload,
	})
}

// seal reserves len(changes) sequence numbers. The upsert holds the scope row
// lock until commit.
func (c *changeSet) seal(ctx context.Context, tx *sql.Tx) ([]domain.Change, error) {
	n := int64(len(c.changes))
	if n == 0 {
		return nil, nil
	}
	var last int64
	if err := tx.QueryRowContext(ctx, bumpScopeQuery, c.scopeID, n).Scan(&last); err != nil {
		return nil, fmt.Errorf("reserve sequence for scope %s: %w", c.scopeID, err)
	}
	first := last - n + 1
	for i := range c.changes {
		c.changes[i].Sequence = first + int64(i)
	}
	return c.changes, nil
}

func subjectID(spec domain.MutationSpec) string {
	switch m := spec.(type) {
	case domain.CreateRestaurant:
		return m.ID
	case domain.UpdateRestaurant:
		return m.ID
	case domain.DeactivateRestaurant:
		return m.ID
	case domain.CreateCategory:
		return m.ID
	case domain.UpdateCategory:
		return m.ID
	case domain.DeleteCategory:
		return m.ID
	case domain.ReorderCategories:
		return m.RestaurantID
	case domain.CreateMenuItem:
		return m.ID
	case domain.UpdateMenuItem:
		return m.ID
	case domain.SetMenuItemAvailability:
		return m.ID
	case domain.DeleteMenuItem:
		return m.ID
	case domain.CreateOrder:
		return m.ID
	case domain.UpdateOrderStatus:
		return m.ID
	}
	return ""
}
