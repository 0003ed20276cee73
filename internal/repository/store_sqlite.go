package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"school-inventory-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Thread-safe with WAL mode; the mutex serializes writers, which is also
// what gives FulfillTx its exclusive read-check-write window.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and if needed creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS inventory_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_norm TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		location TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		date_added DATETIME NOT NULL,
		UNIQUE(name_norm, owner_id)
	);
	CREATE TABLE IF NOT EXISTS item_requests (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		requested_qty INTEGER NOT NULL,
		fulfilled_qty INTEGER NOT NULL DEFAULT 0,
		requester_id TEXT NOT NULL,
		requester_name TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approver_name TEXT NOT NULL DEFAULT '',
		approver_role TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		request_date DATETIME NOT NULL,
		response_date DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_requests_item ON item_requests(item_id);
	CREATE INDEX IF NOT EXISTS idx_requests_requester ON item_requests(requester_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON item_requests(status);
	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_name TEXT NOT NULL DEFAULT '',
		quantity_delta INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);
	`
	_, err := db.Exec(query)
	return err
}

// CreateItem inserts a new catalog item.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO inventory_items (id, name, name_norm, category, quantity, location, owner_id, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Name, item.NormalizedName(), item.Category,
		item.Quantity, item.Location, item.OwnerID, item.DateAdded)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func scanItem(row interface{ Scan(...interface{}) error }) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Quantity,
		&item.Location, &item.OwnerID, &item.DateAdded)
	if err != nil {
		return nil, err
	}
	item.RecalcStatus()
	return &item, nil
}

const itemColumns = `id, name, category, quantity, location, owner_id, date_added`

// GetItem retrieves an item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ?`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns a filtered, paginated item page.
func (s *SQLiteStore) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		where = append(where, "name_norm LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	switch filter.Status {
	case model.ItemOutOfStock:
		where = append(where, "quantity = 0")
	case model.ItemLowStock:
		where = append(where, "quantity > 0 AND quantity < ?")
		args = append(args, model.LowStockThreshold)
	case model.ItemAvailable:
		where = append(where, "quantity >= ?")
		args = append(args, model.LowStockThreshold)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE ` + cond
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE ` + cond + ` ORDER BY name`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, (page-1)*filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []model.InventoryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

// AdjustQuantity applies a signed delta inside a transaction, guarding the
// non-negative invariant.
func (s *SQLiteStore) AdjustQuantity(ctx context.Context, itemID string, delta int) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ?`
	item, err := scanItem(tx.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if item.Quantity+delta < 0 {
		return nil, ErrInsufficientStock
	}
	item.Quantity += delta
	item.RecalcStatus()

	if _, err := tx.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ? WHERE id = ?`,
		item.Quantity, itemID); err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item unless an open request still references it.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_requests WHERE item_id = ? AND status IN (?, ?, ?)`,
		id, model.RequestPending, model.RequestDepartmentApproved, model.RequestApproved).Scan(&open)
	if err != nil {
		return fmt.Errorf("failed to check references: %w", err)
	}
	if open > 0 {
		return ErrItemReferenced
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// CreateRequests inserts all rows in one transaction. Referenced items
// are re-verified under the writer lock so a delete committed since the
// caller's read cannot leave a request pointing at a missing item.
func (s *SQLiteStore) CreateRequests(ctx context.Context, reqs []*model.ItemRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	seen := map[string]bool{}
	for _, req := range reqs {
		if seen[req.ItemID] {
			continue
		}
		seen[req.ItemID] = true

		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM inventory_items WHERE id = ?`, req.ItemID).Scan(&id)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("failed to verify item %s: %w", req.ItemID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO item_requests (id, item_id, item_name, requested_qty, fulfilled_qty,
			requester_id, requester_name, status, approver_id, approver_name, approver_role,
			rejection_reason, notes, admin_notes, request_date, response_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, req := range reqs {
		_, err := stmt.ExecContext(ctx, req.ID, req.ItemID, req.ItemNameSnapshot,
			req.RequestedQuantity, req.FulfilledQuantity, req.RequesterID, req.RequesterNameSnapshot,
			req.Status, req.ApproverID, req.ApproverNameSnapshot, req.ApproverRoleSnapshot,
			req.RejectionReason, req.Notes, req.AdminNotes, req.RequestDate, req.ResponseDate)
		if err != nil {
			return fmt.Errorf("failed to insert request %s: %w", req.ID, err)
		}
	}
	return tx.Commit()
}

const requestColumns = `id, item_id, item_name, requested_qty, fulfilled_qty,
	requester_id, requester_name, status, approver_id, approver_name, approver_role,
	rejection_reason, notes, admin_notes, request_date, response_date`

func scanRequest(row interface{ Scan(...interface{}) error }) (*model.ItemRequest, error) {
	var req model.ItemRequest
	var responseDate sql.NullTime
	err := row.Scan(&req.ID, &req.ItemID, &req.ItemNameSnapshot,
		&req.RequestedQuantity, &req.FulfilledQuantity, &req.RequesterID, &req.RequesterNameSnapshot,
		&req.Status, &req.ApproverID, &req.ApproverNameSnapshot, &req.ApproverRoleSnapshot,
		&req.RejectionReason, &req.Notes, &req.AdminNotes, &req.RequestDate, &responseDate)
	if err != nil {
		return nil, err
	}
	if responseDate.Valid {
		req.ResponseDate = &responseDate.Time
	}
	return &req, nil
}

// GetRequest retrieves a request by id.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.ItemRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM item_requests WHERE id = ?`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListRequests returns a filtered, paginated request page, newest first.
func (s *SQLiteStore) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.ItemRequest, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RequesterID != "" {
		where = append(where, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_requests WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT ` + requestColumns + ` FROM item_requests WHERE ` + cond + ` ORDER BY request_date DESC`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, (page-1)*filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	reqs := []model.ItemRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		reqs = append(reqs, *req)
	}
	return reqs, total, rows.Err()
}

// UpdateRequestStatus persists req only if the stored status still matches expect.
func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, req *model.ItemRequest, expect model.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE item_requests SET
			fulfilled_qty = ?, status = ?, approver_id = ?, approver_name = ?,
			approver_role = ?, rejection_reason = ?, admin_notes = ?, response_date = ?
		WHERE id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, query,
		req.FulfilledQuantity, req.Status, req.ApproverID, req.ApproverNameSnapshot,
		req.ApproverRoleSnapshot, req.RejectionReason, req.AdminNotes, req.ResponseDate,
		req.ID, expect)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM item_requests WHERE id = ?`, req.ID).Scan(&exists); err == nil && exists == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// FulfillTx runs fn with the request and item rows inside a single write
// transaction. The store mutex plus SQLite's single writer guarantee no
// other fulfillment interleaves between the reads and the writes.
func (s *SQLiteStore) FulfillTx(ctx context.Context, requestID string, fn FulfillFunc) (*model.ItemRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM item_requests WHERE id = ?`, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, req.ItemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read item: %w", err)
	}

	if err := fn(req, item); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ? WHERE id = ?`,
		item.Quantity, item.ID); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE item_requests SET
			fulfilled_qty = ?, status = ?, approver_id = ?, approver_name = ?,
			approver_role = ?, response_date = ?
		WHERE id = ?`,
		req.FulfilledQuantity, req.Status, req.ApproverID, req.ApproverNameSnapshot,
		req.ApproverRoleSnapshot, req.ResponseDate, req.ID); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if strings.Contains(err.Error(), "busy") || strings.Contains(err.Error(), "locked") {
			return nil, ErrTxConflict
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return req, nil
}

// AppendActivity records one audit entry.
func (s *SQLiteStore) AppendActivity(ctx context.Context, entry *model.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO activity_log (actor_id, actor_name, action, entity_id, entity_name, quantity_delta, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query, entry.ActorID, entry.ActorName, entry.Action,
		entry.EntityID, entry.EntityName, entry.QuantityDelta, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// ListActivity returns audit entries newest-first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit, offset int) ([]model.ActivityEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, entity_id, entity_name, quantity_delta, detail, created_at
		FROM activity_log ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.EntityID,
			&e.EntityName, &e.QuantityDelta, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// PruneActivity deletes entries older than the threshold.
func (s *SQLiteStore) PruneActivity(ctx context.Context, threshold time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("[SQLiteStore] Pruned %d activity entries (threshold: %v)", deleted, threshold)
	}
	return deleted, nil
}

// Stats returns statistics about the store.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{"backend": "sqlite"}

	var items, requests, activity int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items`).Scan(&items); err != nil {
		return nil, err
	}
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_requests`).Scan(&requests)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log`).Scan(&activity)
	stats["total_items"] = items
	stats["total_requests"] = requests
	stats["total_activity"] = activity

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
