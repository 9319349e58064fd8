package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/MikeMC777/ordenes-checkout/internal/db"
)

type Repository interface {
	// AddLine puts quantity of productID into the user's cart, creating the
	// cart on first use. Adding a product already present increments it.
	AddLine(ctx context.Context, userID, productID string, quantity int) (*Line, error)
	// LinesFor returns the user's cart lines for the given products. Products
	// not in the user's cart are simply absent from the result.
	LinesFor(ctx context.Context, userID string, productIDs []string) ([]Line, error)
	DeleteLines(ctx context.Context, lineIDs []string) (int64, error)
}

type PGRepo struct{ db db.DBTX }

func NewPGRepo(conn db.DBTX) *PGRepo { return &PGRepo{db: conn} }

func (r *PGRepo) AddLine(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	var cartID string
	if err := r.db.QueryRow(ctx, `
		INSERT INTO carts (id, user_id) VALUES ($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.NewString(), userID).Scan(&cartID); err != nil {
		return nil, err
	}

	l := Line{CartID: cartID, UserID: userID, ProductID: productID}
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity, updated_at
	`, uuid.NewString(), cartID, productID, quantity).Scan(&l.ID, &l.Quantity, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PGRepo) LinesFor(ctx context.Context, userID string, productIDs []string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.cart_id, c.user_id, l.product_id, l.quantity, l.updated_at
		FROM cart_lines l
		JOIN carts c ON c.id = l.cart_id
		WHERE c.user_id = $1 AND l.product_id = ANY($2)
		ORDER BY l.created_at
		FOR UPDATE OF l
	`, userID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.UserID, &l.ProductID, &l.Quantity, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteLines(ctx context.Context, lineIDs []string) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = ANY($1)`, lineIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
