package models

import "time"

// Account 用户账户，本核心只读取余额并在预约时扣费
type Account struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	ContactNum string  `json:"contactNum"`
	Credits    float64 `json:"credits"`
}

// WalletTransaction 钱包流水，预约扣费写入负数 credit
type WalletTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user"`
	Credit      float64   `json:"credit"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
