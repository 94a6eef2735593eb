// Package fallback holds the canned affiliate dataset served when the real
// record source cannot be reached. Every accessor returns a fresh copy.
package fallback

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bgref/internal/domain"
	"bgref/pkg/errors"
)

const (
	treeID         int64 = 1
	rootWallet           = "ABC123DEF456GHI789JKL012MNO345PQR678STU901VWX234YZA567"
	parentWallet         = "XYZ789ABC123DEF456GHI789JKL012MNO345PQR678STU901VWX234"
	parentWalletID int64 = 789012
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DownlineRecords returns five members across levels 1-3.
func DownlineRecords() []domain.MemberRecord {
	return []domain.MemberRecord{
		{
			WalletID: 789012, Level: 1, CommissionPercent: d("25"),
			TotalCommission: d("75"), TotalVolume: d("3000"), TotalTransactions: 15,
			LastTransactionDate: tsPtr("2024-01-15T10:30:00Z"),
			WalletInfo:          domain.WalletInfo{NickName: "User1", SolanaAddress: "ABC123...", EthAddress: "0xDEF456..."},
		},
		{
			WalletID: 123457, Level: 1, CommissionPercent: d("30"),
			TotalCommission: d("50"), TotalVolume: d("2000"), TotalTransactions: 10,
			LastTransactionDate: tsPtr("2024-01-16T11:00:00Z"),
			WalletInfo:          domain.WalletInfo{NickName: "User3", SolanaAddress: "DEF456...", EthAddress: "0xGHI789..."},
		},
		{
			WalletID: 123458, Level: 2, CommissionPercent: d("15"),
			TotalCommission: d("30"), TotalVolume: d("1000"), TotalTransactions: 5,
			LastTransactionDate: tsPtr("2024-01-17T12:00:00Z"),
			WalletInfo:          domain.WalletInfo{NickName: "User4", SolanaAddress: "JKL012...", EthAddress: "0xMNO345..."},
		},
		{
			WalletID: 123459, Level: 2, CommissionPercent: d("10"),
			TotalCommission: d("20"), TotalVolume: d("800"), TotalTransactions: 4,
			LastTransactionDate: tsPtr("2024-01-18T13:00:00Z"),
			WalletInfo:          domain.WalletInfo{NickName: "User5", SolanaAddress: "PQR678...", EthAddress: "0xSTU901..."},
		},
		{
			WalletID: 123460, Level: 3, CommissionPercent: d("5"),
			TotalCommission: d("10"), TotalVolume: d("200"), TotalTransactions: 1,
			LastTransactionDate: tsPtr("2024-01-19T14:00:00Z"),
			WalletInfo:          domain.WalletInfo{NickName: "User6", SolanaAddress: "VWX234...", EthAddress: "0xYZA567..."},
		},
	}
}

// CommissionHistory returns four rewards across levels 1-3.
func CommissionHistory() []domain.CommissionEntry {
	return []domain.CommissionEntry{
		{ID: 1, TreeID: treeID, OrderID: 12345, Wallet: rootWallet, CommissionAmount: d("25.500000"), Level: 1, CreatedAt: ts("2024-01-15T10:30:00Z")},
		{ID: 2, TreeID: treeID, OrderID: 12346, Wallet: parentWallet, CommissionAmount: d("15.000000"), Level: 2, CreatedAt: ts("2024-01-16T11:00:00Z")},
		{ID: 3, TreeID: treeID, OrderID: 12347, Wallet: rootWallet, CommissionAmount: d("10.250000"), Level: 1, CreatedAt: ts("2024-01-17T12:15:00Z")},
		{ID: 4, TreeID: treeID, OrderID: 12348, Wallet: parentWallet, CommissionAmount: d("5.750000"), Level: 3, CreatedAt: ts("2024-01-18T13:45:00Z")},
	}
}

// Status describes walletID as a level-1 member of the canned tree.
func Status(walletID int64) *domain.AffiliateStatus {
	parent := parentWalletID
	return &domain.AffiliateStatus{
		IsBgAffiliate: true,
		CurrentWallet: domain.WalletSummary{
			WalletID:      walletID,
			SolanaAddress: rootWallet,
			NickName:      "CurrentUser",
			EthAddress:    "0xDEF456789ABC123DEF456789ABC123DEF456789A",
		},
		BgAffiliateInfo: &domain.NodeSummary{
			TreeID:            treeID,
			ParentWalletID:    &parent,
			CommissionPercent: d("25"),
			Level:             1,
		},
	}
}

// Stats returns the canned tree summary.
func Stats() *domain.AffiliateStats {
	parent := parentWallet
	return &domain.AffiliateStats{
		IsBgAffiliate: true,
		TreeInfo: domain.TreeSummary{
			TreeID:                 treeID,
			RootWallet:             rootWallet,
			TotalCommissionPercent: d("70"),
		},
		NodeInfo: domain.NodeInfo{
			TreeID:            treeID,
			ParentWallet:      &parent,
			CommissionPercent: d("25"),
			Level:             1,
		},
		TotalEarnings: d("125.5"),
	}
}

// Tree returns the canned referral tree with two downline nodes.
func Tree() *domain.AffiliateTree {
	return &domain.AffiliateTree{
		IsBgAffiliate: true,
		TreeInfo: domain.TreeInfo{
			TreeID:                 treeID,
			Referrer:               &domain.Referrer{SolanaAddress: rootWallet, NickName: "ReferrerUser"},
			TotalCommissionPercent: d("70"),
			CreatedAt:              ts("2024-01-01T00:00:00Z"),
		},
		DownlineNodes: []domain.DownlineNode{
			{
				NodeID:            2,
				SolanaAddress:     parentWallet,
				CommissionPercent: d("35"),
				EffectiveFrom:     ts("2024-01-15T10:30:00Z"),
				Level:             1,
				WalletInfo:        domain.NodeWallet{WalletID: 789012, NickName: "User1", SolanaAddress: parentWallet, EthAddress: "0xDEF456..."},
			},
			{
				NodeID:            3,
				SolanaAddress:     "JKL012MNO345PQR678STU901VWX234YZA567ABC123DEF456GHI789",
				CommissionPercent: d("20"),
				EffectiveFrom:     ts("2024-01-20T14:00:00Z"),
				Level:             2,
				WalletInfo:        domain.NodeWallet{WalletID: 123458, NickName: "User2", SolanaAddress: "JKL012MNO345PQR678STU901VWX234YZA567ABC123DEF456GHI789", EthAddress: "0xABC123..."},
			},
		},
	}
}

// Source serves the canned dataset through the record-source interface.
// Writes are refused: substitute data is read-only.
type Source struct{}

func (Source) DownlineRecords(ctx context.Context, walletID int64) ([]domain.MemberRecord, error) {
	return DownlineRecords(), nil
}

func (Source) CommissionHistory(ctx context.Context, walletID int64) ([]domain.CommissionEntry, error) {
	return CommissionHistory(), nil
}

func (Source) Status(ctx context.Context, walletID int64) (*domain.AffiliateStatus, error) {
	return Status(walletID), nil
}

func (Source) Stats(ctx context.Context, walletID int64) (*domain.AffiliateStats, error) {
	return Stats(), nil
}

func (Source) Tree(ctx context.Context, walletID int64) (*domain.AffiliateTree, error) {
	return Tree(), nil
}

func (Source) UpdateCommissionPercent(ctx context.Context, fromWalletID, toWalletID int64, percent decimal.Decimal) error {
	return errors.ErrSourceUnavailable
}
