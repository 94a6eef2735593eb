// Seeding tool that loads the canned affiliate dataset into postgres so a
// local dashboard has a tree to show.
// Usage (env overrides):
//
//	SEED_EMAIL=affiliate@example.com SEED_TELEGRAM_ID=100200300
//
// Reads DATABASE_URL and other core config via bgref/pkg/config
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"bgref/internal/domain"
	"bgref/internal/fallback"
	"bgref/internal/repository/postgres"
	"bgref/pkg/config"
	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

// parentOf places the canned members in the tree: level 1 under the viewer,
// level 2 under 789012, level 3 under 123458.
var parentOf = map[int64]int64{
	123458: 789012,
	123459: 789012,
	123460: 123458,
}

func main() {
	log := logger.New("seed-affiliate")

	cfg := config.Load()
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required", nil)
	}

	email := getenv("SEED_EMAIL", "affiliate@example.com")
	telegramID := getenv("SEED_TELEGRAM_ID", "100200300")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	walletRepo := postgres.NewWalletRepository(db)
	affiliateRepo := postgres.NewAffiliateRepository(db)
	ctx := context.Background()

	if existing, err := walletRepo.FindByEmail(ctx, email); err == nil {
		fmt.Printf("OK: %s already seeded as wallet %d\n", email, existing.ID)
		return
	} else if !errors.Is(err, errors.ErrWalletNotFound) {
		log.Fatal("FindByEmail failed", map[string]interface{}{"error": err.Error()})
	}

	viewer := &domain.Wallet{
		NickName:      "CurrentUser",
		SolanaAddress: "ABC123DEF456GHI789JKL012MNO345PQR678STU901VWX234YZA567",
		EthAddress:    "0xDEF456789ABC123DEF456789ABC123DEF456789A",
		Email:         &email,
		TelegramID:    &telegramID,
		IsBgAffiliate: true,
	}
	if err := walletRepo.Create(ctx, viewer); err != nil {
		log.Fatal("Create viewer wallet failed", map[string]interface{}{"error": err.Error()})
	}

	treeID, err := affiliateRepo.CreateTree(ctx, viewer.ID, decimal.NewFromInt(70))
	if err != nil {
		log.Fatal("Create tree failed", map[string]interface{}{"error": err.Error()})
	}
	root := &postgres.Node{
		TreeID:            treeID,
		WalletID:          viewer.ID,
		CommissionPercent: decimal.NewFromInt(70),
		Level:             0,
		EffectiveFrom:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := affiliateRepo.CreateNode(ctx, root); err != nil {
		log.Fatal("Create root node failed", map[string]interface{}{"error": err.Error()})
	}

	// Canned IDs are remapped to the generated ones. Records are ordered by
	// level, so parents are always created first.
	ids := map[int64]int64{}
	var orderID int64 = 1000
	for _, rec := range fallback.DownlineRecords() {
		w := &domain.Wallet{
			NickName:      rec.WalletInfo.NickName,
			SolanaAddress: rec.WalletInfo.SolanaAddress,
			EthAddress:    rec.WalletInfo.EthAddress,
		}
		if err := walletRepo.Create(ctx, w); err != nil {
			log.Fatal("Create member wallet failed", map[string]interface{}{"wallet": rec.WalletID, "error": err.Error()})
		}
		ids[rec.WalletID] = w.ID

		parent := viewer.ID
		if p, ok := parentOf[rec.WalletID]; ok {
			parent = ids[p]
		}
		node := &postgres.Node{
			TreeID:            treeID,
			WalletID:          w.ID,
			ParentWalletID:    &parent,
			CommissionPercent: rec.CommissionPercent,
			Level:             rec.Level,
			EffectiveFrom:     w.CreatedAt,
		}
		if err := affiliateRepo.CreateNode(ctx, node); err != nil {
			log.Fatal("Create member node failed", map[string]interface{}{"wallet": rec.WalletID, "error": err.Error()})
		}

		for i, part := range splitRewards(rec) {
			orderID++
			part.TreeID = treeID
			part.OrderID = orderID
			part.WalletID = viewer.ID
			part.SourceWalletID = w.ID
			if err := affiliateRepo.CreateReward(ctx, &part); err != nil {
				log.Fatal("Create reward failed", map[string]interface{}{"wallet": rec.WalletID, "index": i, "error": err.Error()})
			}
		}
	}

	log.Info("Affiliate dataset seeded", map[string]interface{}{
		"viewer_wallet_id": viewer.ID,
		"tree_id":          treeID,
		"members":          len(ids),
	})
	fmt.Printf("OK: seeded wallet %d (%s, telegram %s) with %d downline members\n", viewer.ID, email, telegramID, len(ids))
}

// splitRewards spreads a record's totals over its transaction count, one
// reward per transaction, so the summed rows equal the record exactly. The
// last reward absorbs the rounding remainder and carries the record's last
// transaction date.
func splitRewards(rec domain.MemberRecord) []postgres.Reward {
	n := rec.TotalTransactions
	if n <= 0 {
		return nil
	}
	last := time.Now().UTC()
	if rec.LastTransactionDate != nil {
		last = *rec.LastTransactionDate
	}

	count := decimal.NewFromInt(n)
	commissionPart := rec.TotalCommission.DivRound(count, 6)
	volumePart := rec.TotalVolume.DivRound(count, 6)

	out := make([]postgres.Reward, 0, n)
	commissionLeft, volumeLeft := rec.TotalCommission, rec.TotalVolume
	for i := int64(0); i < n; i++ {
		c, v := commissionPart, volumePart
		if i == n-1 {
			c, v = commissionLeft, volumeLeft
		}
		commissionLeft = commissionLeft.Sub(c)
		volumeLeft = volumeLeft.Sub(v)
		out = append(out, postgres.Reward{
			CommissionAmount: c,
			Volume:           v,
			Level:            rec.Level,
			CreatedAt:        last.Add(-time.Duration(n-1-i) * time.Hour),
		})
	}
	return out
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
