package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
)

const pqUniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Products

const productColumns = `id, name, description, category, unit_price, stock_quantity, version, archived, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.UnitPrice,
		&p.StockQuantity, &p.Version, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// productWhere renders filter as a WHERE clause with positional args.
func productWhere(f model.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeArchived {
		conds = append(conds, "NOT archived")
	}
	if f.Search != "" {
		add(`name ILIKE '%%' || $%d || '%%' ESCAPE '\'`, escapeLike(f.Search))
	}
	if f.Category != "" {
		add(`category = $%d`, f.Category)
	}
	if f.MinPrice != nil {
		add(`unit_price >= $%d`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(`unit_price <= $%d`, *f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) CountProducts(ctx context.Context, filter model.ProductFilter) (int, error) {
	where, args := productWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n)
	return n, err
}

func (s *PostgresStore) QueryProducts(ctx context.Context, filter model.ProductFilter, offset, limit int) ([]model.Product, error) {
	where, args := productWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]model.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.Category, p.UnitPrice, p.StockQuantity, p.Version, p.Archived, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, category = $3, unit_price = $4, archived = $5, updated_at = $6
		 WHERE id = $7`,
		p.Name, p.Description, p.Category, p.UnitPrice, p.Archived, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Facets(ctx context.Context) (model.CatalogFacets, error) {
	facets := model.CatalogFacets{Categories: []string{}}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM products WHERE NOT archived ORDER BY category`)
	if err != nil {
		return facets, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return facets, err
		}
		facets.Categories = append(facets.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return facets, err
	}

	var minPrice, maxPrice decimal.NullDecimal
	err = s.db.QueryRowContext(ctx, `SELECT MIN(unit_price), MAX(unit_price) FROM products WHERE NOT archived`).Scan(&minPrice, &maxPrice)
	if err != nil {
		return facets, err
	}
	facets.MinPrice = minPrice.Decimal
	facets.MaxPrice = maxPrice.Decimal
	return facets, nil
}

// Ledger

func (s *PostgresStore) AppendEntry(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $1, version = $2, updated_at = $3
		 WHERE id = $4 AND version = $5`,
		entry.ResultingStock, entry.Sequence, entry.Timestamp, entry.ProductID, expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, entry.ProductID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	var orderID sql.NullString
	if entry.OrderID != "" {
		orderID = sql.NullString{String: entry.OrderID, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_log (id, product_id, sequence, change_type, quantity_changed, requested_change,
		     resulting_stock, actor, order_id, authoritative, clamped, remarks, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.ProductID, entry.Sequence, string(entry.ChangeType), entry.QuantityChanged, entry.RequestedChange,
		entry.ResultingStock, entry.Actor, orderID, entry.Authoritative, entry.Clamped, entry.Remarks, entry.Timestamp,
	)
	if isUniqueViolation(err) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

const entryColumns = `id, product_id, sequence, change_type, quantity_changed, requested_change, resulting_stock,
	actor, order_id, authoritative, clamped, remarks, created_at`

func (s *PostgresStore) productExists(ctx context.Context, productID string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]model.InventoryLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.InventoryLogEntry, 0)
	for rows.Next() {
		var (
			e          model.InventoryLogEntry
			changeType string
			orderID    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Sequence, &changeType, &e.QuantityChanged, &e.RequestedChange,
			&e.ResultingStock, &e.Actor, &orderID, &e.Authoritative, &e.Clamped, &e.Remarks, &e.Timestamp); err != nil {
			return nil, err
		}
		e.ChangeType = model.ChangeType(changeType)
		e.OrderID = orderID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListEntries(ctx context.Context, productID string, afterSequence int64, limit int) ([]model.InventoryLogEntry, error) {
	if err := s.productExists(ctx, productID); err != nil {
		return nil, err
	}
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM inventory_log
		 WHERE product_id = $1 AND sequence > $2
		 ORDER BY sequence ASC
		 LIMIT $3`,
		productID, afterSequence, limit,
	)
}

func (s *PostgresStore) OrderEntries(ctx context.Context, productID, orderID string) ([]model.InventoryLogEntry, error) {
	if err := s.productExists(ctx, productID); err != nil {
		return nil, err
	}
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM inventory_log
		 WHERE order_id = $1 AND product_id = $2
		 ORDER BY sequence ASC`,
		orderID, productID,
	)
}

// Carts

func (s *PostgresStore) CartLines(ctx context.Context, userID string) ([]model.CartLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, product_id, quantity, added_at FROM cart_lines
		 WHERE user_id = $1 ORDER BY added_at, product_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]model.CartLine, 0)
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) PutCartLine(ctx context.Context, line model.CartLine) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_lines (user_id, product_id, quantity, added_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		line.UserID, line.ProductID, line.Quantity, line.AddedAt,
	)
	return err
}

func (s *PostgresStore) DeleteCartLine(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}

func (s *PostgresStore) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}

// Orders

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fullName, address, contact sql.NullString
	if o.Shipping != nil {
		fullName = sql.NullString{String: o.Shipping.FullName, Valid: true}
		address = sql.NullString{String: o.Shipping.Address, Valid: true}
		contact = sql.NullString{String: o.Shipping.ContactNumber, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount, payment_method,
		     shipping_full_name, shipping_address, shipping_contact, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.UserID, string(o.Status), o.TotalAmount, o.PaymentMethod,
		fullName, address, contact, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}

	for i, l := range o.Lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, line_no, product_id, product_name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i+1, l.ProductID, l.ProductName, l.Quantity, l.UnitPriceAtPurchase,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const orderColumns = `id, user_id, status, total_amount, payment_method,
	shipping_full_name, shipping_address, shipping_contact, created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o                        model.Order
		status                   string
		fullName, address, phone sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount, &o.PaymentMethod,
		&fullName, &address, &phone, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if fullName.Valid || address.Valid || phone.Valid {
		o.Shipping = &model.ShippingDetails{
			FullName:      fullName.String,
			Address:       address.String,
			ContactNumber: phone.String,
		}
	}
	return &o, nil
}

func (s *PostgresStore) loadLines(ctx context.Context, o *model.Order) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, quantity, unit_price FROM order_lines
		 WHERE order_id = $1 ORDER BY line_no`,
		o.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Lines = make([]model.OrderLine, 0)
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPriceAtPurchase); err != nil {
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var conds []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range orders {
		if err := s.loadLines(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at, id, string(from),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.FullName, string(u.Role), u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, role, created_at FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = $1", strings.ToLower(email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, password_hash, full_name, role, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var (
			u    model.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = $1, password_hash = $2 WHERE id = $3`,
		u.FullName, u.PasswordHash, u.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
