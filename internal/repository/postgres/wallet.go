package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"bgref/internal/domain"
	"bgref/pkg/errors"
)

const walletColumns = `id, nick_name, solana_address, eth_address, email, telegram_id, is_bg_affiliate, created_at`

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts wallet and sets its generated ID and creation time.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (nick_name, solana_address, eth_address, email, telegram_id, is_bg_affiliate)
		VALUES (:nick_name, :solana_address, :eth_address, :email, :telegram_id, :is_bg_affiliate)
		RETURNING id, created_at
	`
	query, args, err := r.db.BindNamed(query, wallet)
	if err != nil {
		return errors.Wrap(err, "failed to bind wallet insert")
	}
	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&wallet.ID, &wallet.CreatedAt)
	return errors.Wrap(err, "failed to create wallet")
}

func (r *WalletRepository) FindByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *WalletRepository) FindByEmail(ctx context.Context, email string) (*domain.Wallet, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *WalletRepository) FindByTelegramID(ctx context.Context, telegramID string) (*domain.Wallet, error) {
	return r.findOne(ctx, "telegram_id = $1", telegramID)
}

func (r *WalletRepository) findOne(ctx context.Context, where string, arg interface{}) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE ` + where
	err := r.db.GetContext(ctx, wallet, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet")
	}
	return wallet, nil
}
