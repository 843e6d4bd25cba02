package models

import (
	"errors"
	"fmt"
	"time"
)

type EarningSource string

const (
	SourceStoryPurchase EarningSource = "story_purchase"
	SourceFreeRead      EarningSource = "free_read"
	SourceBonus         EarningSource = "bonus"
)

type TransactionType string

const (
	TransactionEarn       TransactionType = "earn"
	TransactionWithdrawal TransactionType = "withdrawal"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Wallet amounts are in minor units. TotalEarnings always equals the sum of
// the three per-source accumulators.
type Wallet struct {
	UserID           string    `json:"user_id"`
	Balance          int64     `json:"balance"`
	TotalEarnings    int64     `json:"total_earnings"`
	FreeReadEarnings int64     `json:"free_read_earnings"`
	PaidReadEarnings int64     `json:"paid_read_earnings"`
	BonusEarnings    int64     `json:"bonus_earnings"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (w *Wallet) Credit(source EarningSource, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative credit %d", amount)
	}
	switch source {
	case SourceStoryPurchase:
		w.PaidReadEarnings += amount
	case SourceFreeRead:
		w.FreeReadEarnings += amount
	case SourceBonus:
		w.BonusEarnings += amount
	default:
		return fmt.Errorf("unknown earning source %q", source)
	}
	w.TotalEarnings += amount
	w.Balance += amount
	return nil
}

func (w *Wallet) Withdraw(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdrawal must be positive, got %d", amount)
	}
	if amount > w.Balance {
		return ErrInsufficientBalance
	}
	w.Balance -= amount
	return nil
}

type WalletTransaction struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id"`
	StoryID   string          `json:"story_id,omitempty"`
	Type      TransactionType `json:"type"`
	Source    EarningSource   `json:"source,omitempty"`
	Amount    int64           `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
