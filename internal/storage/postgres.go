package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	db *pgxpool.Pool
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		login TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'customer',
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		nome TEXT NOT NULL,
		preco NUMERIC NOT NULL,
		ativo BOOLEAN NOT NULL DEFAULT TRUE,
		image_url TEXT
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS daily_capacity (
		dia_semana INT NOT NULL,
		product_id INT NOT NULL REFERENCES products(id),
		limite_total INT NOT NULL,
		PRIMARY KEY (dia_semana, product_id)
	);
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id),
		cidade TEXT NOT NULL,
		dia_semana INT NOT NULL,
		cep TEXT NOT NULL,
		rua TEXT NOT NULL,
		numero TEXT NOT NULL,
		complemento TEXT NOT NULL DEFAULT '',
		subtotal NUMERIC NOT NULL,
		frete NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		mp_preference_id TEXT,
		mp_payment_id TEXT,
		delivery_status TEXT NOT NULL DEFAULT 'NEW',
		delivery_notes TEXT NOT NULL DEFAULT '',
		delivered_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id INT NOT NULL REFERENCES products(id),
		quantidade INT NOT NULL,
		preco_unit NUMERIC NOT NULL,
		subtotal NUMERIC NOT NULL
	);`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgreStorage(ctx context.Context, DatabaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, DatabaseURI)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		return nil, err
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) CreateUser(ctx context.Context, login string, passwordHash string) error {
	const insertUserQuery = `INSERT INTO users (login, password_hash) VALUES ($1, $2)`

	_, err := store.db.Exec(ctx, insertUserQuery, login, passwordHash)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			// 23505 unique_violation
			return errs.ErrLoginAlreadyExists
		}
		return err
	}

	return nil
}

func (s *PostgresStorage) GetUserByLogin(ctx context.Context, login string) (model.User, string, error) {
	const query = `SELECT id, login, role, password_hash FROM users WHERE login = $1`

	var user model.User
	var hash string

	err := s.db.QueryRow(ctx, query, login).Scan(&user.ID, &user.Login, &user.Role, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, "", errs.ErrUserNotFound
		}
		return model.User{}, "", fmt.Errorf("get user by login: %w", err)
	}

	return user, hash, nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int) (model.User, error) {
	const query = `SELECT id, login, role FROM users WHERE id = $1`

	var user model.User

	err := s.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Login, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

func (s *PostgresStorage) GetProducts(ctx context.Context, ids []int) (map[int]model.Product, error) {
	const query = `SELECT id, nome, preco, ativo FROM products WHERE id = ANY($1)`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	products := make(map[int]model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, errs.ErrProductNotFound
		}
	}

	return products, nil
}

func (s *PostgresStorage) GetShippingFee(ctx context.Context) (float64, error) {
	const query = `SELECT value::NUMERIC FROM settings WHERE key = 'frete_valor'`

	var fee float64
	err := s.db.QueryRow(ctx, query).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 7.00, nil
		}
		return 0, fmt.Errorf("get shipping fee: %w", err)
	}

	return fee, nil
}

// checkCapacity compares requested quantities against what is still free for
// the weekday. Every product must have a configured limit.
func checkCapacity(productIDs []int, limits, sold, requested map[int]int) error {
	for _, pid := range productIDs {
		limit, ok := limits[pid]
		if !ok {
			return errs.ErrCapacityNotConfigured
		}
		if sold[pid]+requested[pid] > limit {
			remaining := limit - sold[pid]
			if remaining < 0 {
				remaining = 0
			}
			return &errs.CapacityExceededError{ProductID: pid, Remaining: remaining}
		}
	}
	return nil
}

// CreateOrder admits the candidate order against the remaining per-day
// capacity and persists order and items in one transaction. Admissions for the
// same weekday serialize on an advisory lock, so two checkouts racing for the
// last units cannot both pass the check.
func (s *PostgresStorage) CreateOrder(ctx context.Context, order model.Order, items []model.OrderItem) (string, error) {
	const lockQuery = `SELECT pg_advisory_xact_lock(42, $1)`

	const capacityQuery = `
		SELECT product_id, limite_total
		FROM daily_capacity
		WHERE dia_semana = $1 AND product_id = ANY($2)
	`

	const soldQuery = `
		SELECT oi.product_id, COALESCE(SUM(oi.quantidade), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = 'PAID' AND o.dia_semana = $1 AND oi.product_id = ANY($2)
		GROUP BY oi.product_id
	`

	const insertOrderQuery = `
		INSERT INTO orders (id, user_id, cidade, dia_semana, cep, rua, numero, complemento, subtotal, frete, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'PENDING')
	`

	const insertItemQuery = `
		INSERT INTO order_items (order_id, product_id, quantidade, preco_unit, subtotal)
		VALUES ($1, $2, $3, $4, $5)
	`

	productIDs := make([]int, 0, len(items))
	requested := make(map[int]int, len(items))
	for _, it := range items {
		if _, seen := requested[it.ProductID]; !seen {
			productIDs = append(productIDs, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockQuery, order.Weekday); err != nil {
		return "", fmt.Errorf("advisory lock: %w", err)
	}

	limits := make(map[int]int, len(productIDs))
	rows, err := tx.Query(ctx, capacityQuery, order.Weekday, productIDs)
	if err != nil {
		return "", fmt.Errorf("get capacity: %w", err)
	}
	for rows.Next() {
		var pid, limit int
		if err := rows.Scan(&pid, &limit); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan capacity: %w", err)
		}
		limits[pid] = limit
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("capacity rows: %w", err)
	}

	sold := make(map[int]int, len(productIDs))
	rows, err = tx.Query(ctx, soldQuery, order.Weekday, productIDs)
	if err != nil {
		return "", fmt.Errorf("get sold quantities: %w", err)
	}
	for rows.Next() {
		var pid, qty int
		if err := rows.Scan(&pid, &qty); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan sold quantities: %w", err)
		}
		sold[pid] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sold rows: %w", err)
	}

	if err := checkCapacity(productIDs, limits, sold, requested); err != nil {
		return "", err
	}

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, insertOrderQuery,
		orderID, order.UserID, order.City, order.Weekday,
		order.CEP, order.Street, order.Number, order.Complement,
		order.Subtotal, order.ShippingFee, order.Total)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, insertItemQuery, orderID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal)
		if err != nil {
			return "", fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	return orderID, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, id string) (model.Order, error) {
	const query = `
		SELECT id, user_id, cidade, dia_semana, cep, rua, numero, complemento,
			subtotal, frete, total, status, mp_preference_id, mp_payment_id,
			delivery_status, delivery_notes, delivered_at, created_at
		FROM orders
		WHERE id = $1
	`

	const itemsQuery = `
		SELECT product_id, quantidade, preco_unit, subtotal
		FROM order_items
		WHERE order_id = $1
	`

	var o model.Order
	err := s.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.City, &o.Weekday, &o.CEP, &o.Street, &o.Number, &o.Complement,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.Status, &o.PreferenceID, &o.PaymentID,
		&o.DeliveryStatus, &o.DeliveryNotes, &o.DeliveredAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}

	rows, err := s.db.Query(ctx, itemsQuery, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return model.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}

	if err := rows.Err(); err != nil {
		return model.Order{}, fmt.Errorf("row iteration: %w", err)
	}

	return o, nil
}

func (s *PostgresStorage) GetUserOrders(ctx context.Context, user model.User) ([]model.Order, error) {
	const query = `
		SELECT id, cidade, dia_semana, subtotal, frete, total, status,
			mp_payment_id, delivery_status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get user orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o := model.Order{UserID: user.ID}
		err := rows.Scan(&o.ID, &o.City, &o.Weekday, &o.Subtotal, &o.ShippingFee, &o.Total,
			&o.Status, &o.PaymentID, &o.DeliveryStatus, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return orders, nil
}

func (s *PostgresStorage) SetPreferenceID(ctx context.Context, orderID string, preferenceID string) error {
	const query = `UPDATE orders SET mp_preference_id = $1 WHERE id = $2`

	cmdTag, err := s.db.Exec(ctx, query, preferenceID, orderID)
	if err != nil {
		return fmt.Errorf("set preference id: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}

	return nil
}

// ApplyPaymentStatus is the reconciler's single conditional write. The WHERE
// clause repeats the downgrade guard so that a concurrent webhook cannot move
// a PAID row back even if both handlers read the same stale status.
func (s *PostgresStorage) ApplyPaymentStatus(ctx context.Context, orderID string, next model.PaymentStatus, paymentID string) (bool, error) {
	const query = `
		UPDATE orders
		SET status = $1, mp_payment_id = $2
		WHERE id = $3 AND NOT (status = 'PAID' AND $1 <> 'PAID')
	`

	cmdTag, err := s.db.Exec(ctx, query, string(next), paymentID, orderID)
	if err != nil {
		return false, fmt.Errorf("apply payment status: %w", err)
	}

	return cmdTag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	query := `
		SELECT id, user_id, cidade, dia_semana, cep, rua, numero, complemento,
			subtotal, frete, total, status, mp_preference_id, mp_payment_id,
			delivery_status, delivery_notes, delivered_at, created_at
		FROM orders
	`

	var conds []string
	var args []any
	if filter.PaymentStatus != "" && filter.PaymentStatus != "ALL" {
		args = append(args, filter.PaymentStatus)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DeliveryStatus != "" && filter.DeliveryStatus != "ALL" {
		args = append(args, filter.DeliveryStatus)
		conds = append(conds, fmt.Sprintf("delivery_status = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, fmt.Sprintf("cidade = $%d", len(args)))
	}

	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	limit := filter.Limit
	if limit < 10 {
		limit = 100
	}
	if limit > 200 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		err := rows.Scan(
			&o.ID, &o.UserID, &o.City, &o.Weekday, &o.CEP, &o.Street, &o.Number, &o.Complement,
			&o.Subtotal, &o.ShippingFee, &o.Total, &o.Status, &o.PreferenceID, &o.PaymentID,
			&o.DeliveryStatus, &o.DeliveryNotes, &o.DeliveredAt, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return orders, nil
}

// UpdateDelivery touches only the delivery fields. Payment status and amounts
// belong to the reconciler and stay untouched here.
func (s *PostgresStorage) UpdateDelivery(ctx context.Context, orderID string, status model.DeliveryStatus, notes string, markDelivered bool) error {
	const query = `
		UPDATE orders
		SET delivery_status = $1,
			delivery_notes = $2,
			delivered_at = CASE WHEN $3 THEN NOW() ELSE delivered_at END
		WHERE id = $4
	`

	cmdTag, err := s.db.Exec(ctx, query, string(status), notes, markDelivered, orderID)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}

	return nil
}
