package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	orderColumns = `id, buyer_id, total_amount::text, payment_method, payment_status, status,
		cancelled_by, shipping_address, COALESCE(provider_order_ref, ''), COALESCE(provider_payment_ref, ''),
		created_at, updated_at`

	sqlInsertOrder = `INSERT INTO orders (id, buyer_id, total_amount, payment_method, payment_status, status,
		cancelled_by, shipping_address, provider_order_ref, provider_payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	sqlInsertItem = `INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5::numeric)`
	sqlUpdateOrder = `UPDATE orders SET status = $2, payment_status = $3, cancelled_by = $4, updated_at = $5
		WHERE id = $1`

	sqlOrderByID         = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	sqlOrderByPaymentRef = `SELECT ` + orderColumns + ` FROM orders WHERE provider_payment_ref = $1`
	sqlOrdersByBuyer     = `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, id`
	sqlOrdersByProducts  = `SELECT ` + orderColumns + ` FROM orders
		WHERE id IN (SELECT order_id FROM order_items WHERE product_id = ANY($1))
		ORDER BY created_at DESC, id`
	sqlItemsByOrders = `SELECT order_id, product_id, quantity, unit_price::text FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, line_no`
)

const uniqueViolation = "23505"

type orderRepo struct {
	q    DBTX
	lock bool
}

func (r orderRepo) Insert(ctx context.Context, o *orders.Order) error {
	_, err := r.q.Exec(ctx, sqlInsertOrder,
		o.ID, o.BuyerID, o.TotalAmount.StringFixed(2), string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		string(o.CancelledBy), o.ShippingAddress, nullable(o.ProviderOrderRef), nullable(o.ProviderPaymentRef),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.InvalidState("payment already recorded for another order")
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := r.q.Exec(ctx, sqlInsertItem, o.ID, i+1, it.ProductID, it.Quantity, it.UnitPrice.StringFixed(2)); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*orders.Order, error) {
	stmt := sqlOrderByID
	if r.lock {
		stmt += ` FOR UPDATE`
	}
	return r.one(ctx, stmt, id)
}

func (r orderRepo) FindByPaymentRef(ctx context.Context, ref string) (*orders.Order, error) {
	return r.one(ctx, sqlOrderByPaymentRef, ref)
}

func (r orderRepo) Update(ctx context.Context, o *orders.Order) error {
	ct, err := r.q.Exec(ctx, sqlUpdateOrder, o.ID, string(o.Status), string(o.PaymentStatus), string(o.CancelledBy), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

func (r orderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]*orders.Order, error) {
	return r.many(ctx, sqlOrdersByBuyer, buyerID)
}

func (r orderRepo) ListByProducts(ctx context.Context, productIDs []string) ([]*orders.Order, error) {
	if len(productIDs) == 0 {
		return []*orders.Order{}, nil
	}
	return r.many(ctx, sqlOrdersByProducts, productIDs)
}

func (r orderRepo) one(ctx context.Context, stmt string, arg string) (*orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, stmt, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.attachItems(ctx, []*orders.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r orderRepo) many(ctx context.Context, stmt string, arg any) ([]*orders.Order, error) {
	rows, err := r.q.Query(ctx, stmt, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	out := []*orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems loads the lines of all given orders with one query.
func (r orderRepo) attachItems(ctx context.Context, list []*orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*orders.Order, len(list))
	ids := make([]string, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.q.Query(ctx, sqlItemsByOrders, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID, price string
			it             orders.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse unit price: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o                             orders.Order
		total                         string
		method, payStatus, st, cancel string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &total, &method, &payStatus, &st,
		&cancel, &o.ShippingAddress, &o.ProviderOrderRef, &o.ProviderPaymentRef,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	o.PaymentMethod = orders.PaymentMethod(method)
	o.PaymentStatus = orders.PaymentStatus(payStatus)
	o.Status = orders.Status(st)
	o.CancelledBy = orders.CancelledBy(cancel)
	o.Items = []orders.Item{}
	return &o, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
