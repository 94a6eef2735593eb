package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bgref/internal/domain"
	"bgref/pkg/errors"
)

// maxTreeDepth bounds the recursive downline walk.
const maxTreeDepth = 64

// downlineCTE walks every node below $1, numbering depth from 1.
const downlineCTE = `
	WITH RECURSIVE downline AS (
		SELECT n.id, n.wallet_id, n.commission_percent, n.effective_from, 1 AS depth
		FROM affiliate_nodes n
		WHERE n.parent_wallet_id = $1
		UNION ALL
		SELECT c.id, c.wallet_id, c.commission_percent, c.effective_from, d.depth + 1
		FROM affiliate_nodes c
		JOIN downline d ON c.parent_wallet_id = d.wallet_id
		WHERE d.depth < $2
	)
`

// Node is an affiliate_nodes row as written by the seeder.
type Node struct {
	TreeID            int64           `db:"tree_id"`
	WalletID          int64           `db:"wallet_id"`
	ParentWalletID    *int64          `db:"parent_wallet_id"`
	CommissionPercent decimal.Decimal `db:"commission_percent"`
	Level             int             `db:"level"`
	EffectiveFrom     time.Time       `db:"effective_from"`
}

// Reward is an affiliate_rewards row as written by the seeder.
type Reward struct {
	TreeID           int64           `db:"tree_id"`
	OrderID          int64           `db:"order_id"`
	WalletID         int64           `db:"wallet_id"`
	SourceWalletID   int64           `db:"source_wallet_id"`
	CommissionAmount decimal.Decimal `db:"commission_amount"`
	Volume           decimal.Decimal `db:"volume"`
	Level            int             `db:"level"`
	CreatedAt        time.Time       `db:"created_at"`
}

type nodeRow struct {
	TreeID            int64           `db:"tree_id"`
	ParentWalletID    *int64          `db:"parent_wallet_id"`
	ParentWallet      *string         `db:"parent_wallet"`
	CommissionPercent decimal.Decimal `db:"commission_percent"`
	Level             int             `db:"level"`
}

// AffiliateRepository reads and writes the affiliate tree tables.
type AffiliateRepository struct {
	db *sqlx.DB
}

func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) findNode(ctx context.Context, walletID int64) (*nodeRow, error) {
	node := &nodeRow{}
	query := `
		SELECT n.tree_id, n.parent_wallet_id, p.solana_address AS parent_wallet, n.commission_percent, n.level
		FROM affiliate_nodes n
		LEFT JOIN wallets p ON p.id = n.parent_wallet_id
		WHERE n.wallet_id = $1
	`
	err := r.db.GetContext(ctx, node, query, walletID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNotBgAffiliate
		}
		return nil, errors.Wrap(err, "failed to find affiliate node")
	}
	return node, nil
}

// DownlineRecords aggregates, per downline member, the rewards the member's
// trades produced for walletID.
func (r *AffiliateRepository) DownlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, error) {
	if _, err := r.findNode(ctx, walletID); err != nil {
		return nil, err
	}

	query := downlineCTE + `
		SELECT
			d.wallet_id,
			d.depth AS level,
			d.commission_percent,
			COALESCE(SUM(rw.commission_amount), 0) AS total_commission,
			COALESCE(SUM(rw.volume), 0) AS total_volume,
			COUNT(rw.id) AS total_transactions,
			MAX(rw.created_at) AS last_transaction_date,
			w.nick_name AS "wallet.nick_name",
			w.solana_address AS "wallet.solana_address",
			w.eth_address AS "wallet.eth_address",
			w.created_at AS "wallet.created_at"
		FROM downline d
		JOIN wallets w ON w.id = d.wallet_id
		LEFT JOIN affiliate_rewards rw ON rw.source_wallet_id = d.wallet_id AND rw.wallet_id = $1
		GROUP BY d.wallet_id, d.depth, d.commission_percent, w.nick_name, w.solana_address, w.eth_address, w.created_at
		ORDER BY d.depth, d.wallet_id
	`
	records := []domain.MemberRecord{}
	if err := r.db.SelectContext(ctx, &records, query, walletID, maxTreeDepth); err != nil {
		return nil, errors.Wrap(err, "failed to load downline records")
	}
	return records, nil
}

func (r *AffiliateRepository) CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error) {
	if _, err := r.findNode(ctx, walletID); err != nil {
		return nil, err
	}

	query := `
		SELECT rw.id, rw.tree_id, rw.order_id, s.solana_address AS wallet, rw.commission_amount, rw.level, rw.created_at
		FROM affiliate_rewards rw
		JOIN wallets s ON s.id = rw.source_wallet_id
		WHERE rw.wallet_id = $1
		ORDER BY rw.created_at DESC, rw.id DESC
	`
	entries := []domain.CommissionEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, walletID); err != nil {
		return nil, errors.Wrap(err, "failed to load commission history")
	}
	return entries, nil
}

func (r *AffiliateRepository) Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error) {
	var row struct {
		domain.WalletSummary
		IsBgAffiliate bool `db:"is_bg_affiliate"`
	}
	query := `SELECT id, solana_address, nick_name, eth_address, is_bg_affiliate FROM wallets WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, walletID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to load wallet")
	}

	status := &domain.AffiliateStatus{CurrentWallet: row.WalletSummary}

	node, err := r.findNode(ctx, walletID)
	if err != nil {
		if errors.Is(err, errors.ErrNotBgAffiliate) {
			return status, nil
		}
		return nil, err
	}

	status.IsBgAffiliate = row.IsBgAffiliate
	status.BgAffiliateInfo = &domain.NodeSummary{
		TreeID:            node.TreeID,
		ParentWalletID:    node.ParentWalletID,
		CommissionPercent: node.CommissionPercent,
		Level:             node.Level,
	}
	return status, nil
}

func (r *AffiliateRepository) Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error) {
	node, err := r.findNode(ctx, walletID)
	if err != nil {
		return nil, err
	}

	stats := &domain.AffiliateStats{
		IsBgAffiliate: true,
		NodeInfo: domain.NodeInfo{
			TreeID:            node.TreeID,
			ParentWallet:      node.ParentWallet,
			CommissionPercent: node.CommissionPercent,
			Level:             node.Level,
		},
	}

	query := `
		SELECT t.id AS tree_id, rw.solana_address AS root_wallet, t.total_commission_percent
		FROM affiliate_trees t
		JOIN wallets rw ON rw.id = t.root_wallet_id
		WHERE t.id = $1
	`
	if err := r.db.GetContext(ctx, &stats.TreeInfo, query, node.TreeID); err != nil {
		return nil, errors.Wrap(err, "failed to load tree summary")
	}

	query = `SELECT COALESCE(SUM(commission_amount), 0) FROM affiliate_rewards WHERE wallet_id = $1`
	if err := r.db.GetContext(ctx, &stats.TotalEarnings, query, walletID); err != nil {
		return nil, errors.Wrap(err, "failed to sum earnings")
	}
	return stats, nil
}

func (r *AffiliateRepository) Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error) {
	node, err := r.findNode(ctx, walletID)
	if err != nil {
		return nil, err
	}

	tree := &domain.AffiliateTree{IsBgAffiliate: true}

	query := `SELECT id AS tree_id, total_commission_percent, created_at FROM affiliate_trees WHERE id = $1`
	if err := r.db.GetContext(ctx, &tree.TreeInfo, query, node.TreeID); err != nil {
		return nil, errors.Wrap(err, "failed to load tree")
	}

	if node.ParentWalletID != nil {
		referrer := &domain.Referrer{}
		query = `SELECT solana_address, nick_name FROM wallets WHERE id = $1`
		if err := r.db.GetContext(ctx, referrer, query, *node.ParentWalletID); err != nil {
			return nil, errors.Wrap(err, "failed to load referrer")
		}
		tree.TreeInfo.Referrer = referrer
	}

	query = downlineCTE + `
		SELECT
			d.id AS node_id,
			w.solana_address,
			d.commission_percent,
			d.effective_from,
			d.depth AS level,
			w.id AS "wallet.wallet_id",
			w.nick_name AS "wallet.nick_name",
			w.solana_address AS "wallet.solana_address",
			w.eth_address AS "wallet.eth_address"
		FROM downline d
		JOIN wallets w ON w.id = d.wallet_id
		ORDER BY d.depth, d.id
	`
	tree.DownlineNodes = []domain.DownlineNode{}
	if err := r.db.SelectContext(ctx, &tree.DownlineNodes, query, walletID, maxTreeDepth); err != nil {
		return nil, errors.Wrap(err, "failed to load downline nodes")
	}
	return tree, nil
}

// UpdateCommissionPercent sets the percent of toWalletID's node, provided
// fromWalletID is its parent.
func (r *AffiliateRepository) UpdateCommissionPercent(ctx context.Context, fromWalletID, toWalletID int64, percent decimal.Decimal) error {
	query := `
		UPDATE affiliate_nodes
		SET commission_percent = $3, effective_from = NOW()
		WHERE wallet_id = $2 AND parent_wallet_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, fromWalletID, toWalletID, percent)
	if err != nil {
		return errors.Wrap(err, "failed to update commission percent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.ErrNodeNotFound
	}
	return nil
}

// CreateTree inserts a tree rooted at rootWalletID and returns its ID.
func (r *AffiliateRepository) CreateTree(ctx context.Context, rootWalletID int64, totalPercent decimal.Decimal) (int64, error) {
	var id int64
	query := `INSERT INTO affiliate_trees (root_wallet_id, total_commission_percent) VALUES ($1, $2) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query, rootWalletID, totalPercent).Scan(&id)
	return id, errors.Wrap(err, "failed to create affiliate tree")
}

func (r *AffiliateRepository) CreateNode(ctx context.Context, node *Node) error {
	query := `
		INSERT INTO affiliate_nodes (tree_id, wallet_id, parent_wallet_id, commission_percent, level, effective_from)
		VALUES (:tree_id, :wallet_id, :parent_wallet_id, :commission_percent, :level, :effective_from)
	`
	_, err := r.db.NamedExecContext(ctx, query, node)
	return errors.Wrap(err, "failed to create affiliate node")
}

func (r *AffiliateRepository) CreateReward(ctx context.Context, reward *Reward) error {
	query := `
		INSERT INTO affiliate_rewards (tree_id, order_id, wallet_id, source_wallet_id, commission_amount, volume, level, created_at)
		VALUES (:tree_id, :order_id, :wallet_id, :source_wallet_id, :commission_amount, :volume, :level, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, reward)
	return errors.Wrap(err, "failed to create affiliate reward")
}
