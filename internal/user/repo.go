package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
	"github.com/MikeMC777/ordenes-checkout/internal/db"
)

var ErrAlreadyExist = errors.New("user already exists")

type Repository interface {
	Create(ctx context.Context, u *User) error
	CreateAddress(ctx context.Context, a *Address) error
	// AddressOf returns the address only when it belongs to userID.
	AddressOf(ctx context.Context, userID, addressID string) (*Address, error)
}

type PGRepo struct{ db db.DBTX }

func NewPGRepo(conn db.DBTX) *PGRepo { return &PGRepo{db: conn} }

func (r *PGRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1,$2,NOW())
	`, u.ID, u.Username)
	if db.IsUniqueViolation(err, "") {
		return ErrAlreadyExist
	}
	return err
}

func (r *PGRepo) CreateAddress(ctx context.Context, a *Address) error {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO addresses (id, user_id, recipient_name, phone_number, province, city, district, detail_address, is_default)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.UserID, a.RecipientName, a.PhoneNumber, a.Province, a.City, a.District, a.Detail, a.IsDefault)
	return err
}

func (r *PGRepo) AddressOf(ctx context.Context, userID, addressID string) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeout)
	defer cancel()

	var a Address
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, recipient_name, phone_number, province, city, district, detail_address, is_default
		FROM addresses WHERE id=$1 AND user_id=$2
	`, addressID, userID).Scan(&a.ID, &a.UserID, &a.RecipientName, &a.PhoneNumber, &a.Province, &a.City, &a.District, &a.Detail, &a.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: address %s", apperr.ErrNotFound, addressID)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
