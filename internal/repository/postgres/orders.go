// Package postgres provides read-only access to marketplace order data.
// The delivery service never writes order state; the completed order is
// owned by the storefront.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no completed order matches the given ID.
var ErrNotFound = errors.New("order not found")

// OrderFile is one purchasable asset attached to a product, in the order the
// seller arranged them.
type OrderFile struct {
	URL         string
	ContentType string
	DisplayName string
}

// OrderDelivery is everything the pipeline needs to deliver one order.
type OrderDelivery struct {
	OrderID      string
	OrderNumber  string
	BuyerName    string
	BuyerEmail   string
	ProductTitle string
	Files        []OrderFile
}

// OrderRepo reads order delivery data from PostgreSQL.
type OrderRepo struct{ db *sql.DB }

// NewOrderRepo creates a Postgres-backed order reader.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// GetOrderDelivery loads a completed order with its product files. Files
// preserve the seller's arranged position.
func (r *OrderRepo) GetOrderDelivery(ctx context.Context, orderID string) (*OrderDelivery, error) {
	od := &OrderDelivery{}
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.order_number, COALESCE(u.display_name,''), u.email, p.title
		FROM orders o
		JOIN users u ON u.id = o.buyer_id
		JOIN products p ON p.id = o.product_id
		WHERE o.id = $1 AND o.status = 'completed'
	`, orderID).Scan(&od.OrderID, &od.OrderNumber, &od.BuyerName, &od.BuyerEmail, &od.ProductTitle)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pf.file_url, COALESCE(pf.content_type,''), COALESCE(pf.display_name,'')
		FROM product_files pf
		JOIN orders o ON o.product_id = pf.product_id
		WHERE o.id = $1
		ORDER BY pf.position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order files %s: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var f OrderFile
		if err := rows.Scan(&f.URL, &f.ContentType, &f.DisplayName); err != nil {
			return nil, fmt.Errorf("scan order file: %w", err)
		}
		od.Files = append(od.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order files: %w", err)
	}

	return od, nil
}
