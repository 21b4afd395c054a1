package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/langchou/jpark/internal/models"
)

// ErrInsufficientCredits 余额不足以完成扣费
var ErrInsufficientCredits = errors.New("insufficient credits")

// AccountRepository 账户服务的存储实现
// 账户管理属于外部协作者，本核心只读取余额并在预约时扣费
type AccountRepository struct {
	db *DB
}

// NewAccountRepository 创建账户仓库
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Get 按 ID 查询账户
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	q := r.db.q(ctx)

	var a models.Account
	err := q.QueryRow(ctx, `
		SELECT id, username, email, contact_num, credits FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Username, &a.Email, &a.ContactNum, &a.Credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &a, nil
}

// Debit 扣费并写入钱包流水，余额不足时不落任何写
func (r *AccountRepository) Debit(ctx context.Context, id string, amount float64, description string) error {
	q := r.db.q(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE accounts SET credits = credits - $2 WHERE id = $1 AND credits >= $2
	`, id, amount)
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientCredits
	}

	_, err = q.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, credit, description, status)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), id, -amount, description, "Completed")
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}
