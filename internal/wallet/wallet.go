// Package wallet keeps author earnings. Wallets are created on the first
// credit and every balance change leaves a ledger entry.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veiled-verse/internal/docstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/models"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

type Service struct {
	docs   docstore.Store
	logger *zap.Logger
}

func NewService(docs docstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{docs: docs, logger: log}
}

// Get returns the user's wallet, or an empty one if nothing was credited yet.
func (s *Service) Get(ctx context.Context, userID string) (*models.Wallet, error) {
	doc, err := s.docs.Get(ctx, docstore.CollectionWallets, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &models.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var w models.Wallet
	if err := docstore.Decode(doc, &w); err != nil {
		return nil, err
	}
	w.UserID = userID
	return &w, nil
}

// Credit adds amount to the user's wallet under source. A non-positive
// amount is a no-op.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, source models.EarningSource, storyID string) error {
	if amount <= 0 {
		return nil
	}

	err := s.docs.Transact(ctx, docstore.CollectionWallets, userID, func(current docstore.Document) (docstore.Document, error) {
		w := models.Wallet{UserID: userID}
		if current != nil {
			if err := docstore.Decode(current, &w); err != nil {
				return nil, err
			}
		}
		if err := w.Credit(source, amount); err != nil {
			return nil, err
		}
		w.UpdatedAt = time.Now().UTC()
		return docstore.Encode(w)
	})
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}

	if source == models.SourceStoryPurchase {
		metrics.AuthorEarningsTotal.Add(float64(amount))
	}

	s.record(ctx, models.WalletTransaction{
		UserID:  userID,
		StoryID: storyID,
		Type:    models.TransactionEarn,
		Source:  source,
		Amount:  amount,
	})
	return nil
}

// Withdraw takes amount out of the balance. Earnings totals are untouched.
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64) (*models.Wallet, error) {
	var out models.Wallet
	err := s.docs.Transact(ctx, docstore.CollectionWallets, userID, func(current docstore.Document) (docstore.Document, error) {
		w := models.Wallet{UserID: userID}
		if current != nil {
			if err := docstore.Decode(current, &w); err != nil {
				return nil, err
			}
		}
		if err := w.Withdraw(amount); err != nil {
			return nil, err
		}
		w.UpdatedAt = time.Now().UTC()
		out = w
		return docstore.Encode(w)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	s.record(ctx, models.WalletTransaction{
		UserID: userID,
		Type:   models.TransactionWithdrawal,
		Amount: amount,
	})
	return &out, nil
}

// Transactions lists the user's ledger entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]models.WalletTransaction, error) {
	docs, err := s.docs.Query(ctx, docstore.CollectionTransactions, docstore.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]models.WalletTransaction, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		var tx models.WalletTransaction
		if err := docstore.Decode(docs[i], &tx); err != nil {
			s.logger.Warn("skipping unreadable wallet transaction", zap.Error(err))
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// record appends a ledger entry. The balance is already updated, so a failed
// insert is logged and not returned.
func (s *Service) record(ctx context.Context, tx models.WalletTransaction) {
	tx.CreatedAt = time.Now().UTC()
	doc, err := docstore.Encode(tx)
	if err == nil {
		_, err = s.docs.Create(ctx, docstore.CollectionTransactions, doc)
	}
	if err != nil {
		s.logger.Error("failed to record wallet transaction",
			zap.String(logger.FieldUserID, tx.UserID),
			zap.String(logger.FieldStoryID, tx.StoryID),
			zap.Int64("amount", tx.Amount),
			zap.Error(err))
	}
}
