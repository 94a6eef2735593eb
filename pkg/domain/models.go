package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are rendered as JSON numbers, the shape the dashboard consumes.
	decimal.MarshalJSONWithoutQuotes = true
}

var maxCommissionPercent = decimal.NewFromInt(100)

// WalletInfo is the display identity embedded in downline records.
type WalletInfo struct {
	NickName      string     `json:"nickName" db:"nick_name"`
	SolanaAddress string     `json:"solanaAddress" db:"solana_address"`
	EthAddress    string     `json:"ethAddress" db:"eth_address"`
	CreatedAt     *time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// MemberRecord is one downline participant's performance snapshot.
type MemberRecord struct {
	WalletID            int64           `json:"walletId" db:"wallet_id"`
	Level               int             `json:"level" db:"level"`
	CommissionPercent   decimal.Decimal `json:"commissionPercent" db:"commission_percent"`
	TotalCommission     decimal.Decimal `json:"totalCommission" db:"total_commission"`
	TotalVolume         decimal.Decimal `json:"totalVolume" db:"total_volume"`
	TotalTransactions   int64           `json:"totalTransactions" db:"total_transactions"`
	LastTransactionDate *time.Time      `json:"lastTransactionDate" db:"last_transaction_date"`
	WalletInfo          WalletInfo      `json:"walletInfo" db:"wallet"`
}

// Validate reports the first broken invariant of the record, if any.
func (m MemberRecord) Validate() error {
	switch {
	case m.Level < 1:
		return fmt.Errorf("wallet %d: level %d must be >= 1", m.WalletID, m.Level)
	case m.CommissionPercent.IsNegative() || m.CommissionPercent.GreaterThan(maxCommissionPercent):
		return fmt.Errorf("wallet %d: commission percent %s out of range", m.WalletID, m.CommissionPercent)
	case m.TotalCommission.IsNegative():
		return fmt.Errorf("wallet %d: negative total commission", m.WalletID)
	case m.TotalVolume.IsNegative():
		return fmt.Errorf("wallet %d: negative total volume", m.WalletID)
	case m.TotalTransactions < 0:
		return fmt.Errorf("wallet %d: negative transaction count", m.WalletID)
	}
	return nil
}

// ValidateRecords joins the invariant violations of every record.
func ValidateRecords(records []MemberRecord) error {
	var errs []error
	for _, r := range records {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wallet is the login identity of a dashboard user.
type Wallet struct {
	ID            int64     `json:"walletId" db:"id"`
	NickName      string    `json:"nickName" db:"nick_name"`
	SolanaAddress string    `json:"solanaAddress" db:"solana_address"`
	EthAddress    string    `json:"ethAddress" db:"eth_address"`
	Email         *string   `json:"email,omitempty" db:"email"`
	TelegramID    *string   `json:"telegramId,omitempty" db:"telegram_id"`
	IsBgAffiliate bool      `json:"isBgAffiliate" db:"is_bg_affiliate"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// CommissionEntry is one reward credited to the viewing wallet.
type CommissionEntry struct {
	ID               int64           `json:"bacr_id" db:"id"`
	TreeID           int64           `json:"bacr_tree_id" db:"tree_id"`
	OrderID          int64           `json:"bacr_order_id" db:"order_id"`
	Wallet           string          `json:"bacr_wallet" db:"wallet"`
	CommissionAmount decimal.Decimal `json:"bacr_commission_amount" db:"commission_amount"`
	Level            int             `json:"bacr_level" db:"level"`
	CreatedAt        time.Time       `json:"bacr_created_at" db:"created_at"`
}

// WalletSummary identifies the current wallet in status responses.
type WalletSummary struct {
	WalletID      int64  `json:"walletId" db:"id"`
	SolanaAddress string `json:"solanaAddress" db:"solana_address"`
	NickName      string `json:"nickName" db:"nick_name"`
	EthAddress    string `json:"ethAddress" db:"eth_address"`
}

// NodeSummary is the wallet's position in its affiliate tree.
type NodeSummary struct {
	TreeID            int64           `json:"treeId" db:"tree_id"`
	ParentWalletID    *int64          `json:"parentWalletId" db:"parent_wallet_id"`
	CommissionPercent decimal.Decimal `json:"commissionPercent" db:"commission_percent"`
	Level             int             `json:"level" db:"level"`
}

// AffiliateStatus answers "am I a BG affiliate and where do I sit".
type AffiliateStatus struct {
	IsBgAffiliate   bool          `json:"isBgAffiliate"`
	CurrentWallet   WalletSummary `json:"currentWallet"`
	BgAffiliateInfo *NodeSummary  `json:"bgAffiliateInfo"`
}

type TreeSummary struct {
	TreeID                 int64           `json:"treeId" db:"tree_id"`
	RootWallet             string          `json:"rootWallet" db:"root_wallet"`
	TotalCommissionPercent decimal.Decimal `json:"totalCommissionPercent" db:"total_commission_percent"`
}

type NodeInfo struct {
	TreeID            int64           `json:"treeId" db:"tree_id"`
	ParentWallet      *string         `json:"parentWallet" db:"parent_wallet"`
	CommissionPercent decimal.Decimal `json:"commissionPercent" db:"commission_percent"`
	Level             int             `json:"level" db:"level"`
}

// AffiliateStats summarises the tree and the wallet's earnings in it.
type AffiliateStats struct {
	IsBgAffiliate bool            `json:"isBgAffiliate"`
	TreeInfo      TreeSummary     `json:"treeInfo"`
	NodeInfo      NodeInfo        `json:"nodeInfo"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
}

type Referrer struct {
	SolanaAddress string `json:"solanaAddress" db:"solana_address"`
	NickName      string `json:"nickName" db:"nick_name"`
}

type TreeInfo struct {
	TreeID                 int64           `json:"treeId" db:"tree_id"`
	Referrer               *Referrer       `json:"referrer"`
	TotalCommissionPercent decimal.Decimal `json:"totalCommissionPercent" db:"total_commission_percent"`
	CreatedAt              time.Time       `json:"createdAt" db:"created_at"`
}

type NodeWallet struct {
	WalletID      int64  `json:"walletId" db:"wallet_id"`
	NickName      string `json:"nickName" db:"nick_name"`
	SolanaAddress string `json:"solanaAddress" db:"solana_address"`
	EthAddress    string `json:"ethAddress" db:"eth_address"`
}

// DownlineNode is one member of the referral tree below the viewer.
type DownlineNode struct {
	NodeID            int64           `json:"nodeId" db:"node_id"`
	SolanaAddress     string          `json:"solanaAddress" db:"solana_address"`
	CommissionPercent decimal.Decimal `json:"commissionPercent" db:"commission_percent"`
	EffectiveFrom     time.Time       `json:"effectiveFrom" db:"effective_from"`
	Level             int             `json:"level" db:"level"`
	WalletInfo        NodeWallet      `json:"walletInfo" db:"wallet"`
}

// AffiliateTree is the referral tree as seen from the viewing wallet.
type AffiliateTree struct {
	IsBgAffiliate bool           `json:"isBgAffiliate"`
	TreeInfo      TreeInfo       `json:"treeInfo"`
	DownlineNodes []DownlineNode `json:"downlineNodes"`
}

// DirectDownline returns the level-1 node for walletID, if present.
func (t *AffiliateTree) DirectDownline(walletID int64) (DownlineNode, bool) {
	if t == nil {
		return DownlineNode{}, false
	}
	for _, n := range t.DownlineNodes {
		if n.Level == 1 && n.WalletInfo.WalletID == walletID {
			return n, true
		}
	}
	return DownlineNode{}, false
}
