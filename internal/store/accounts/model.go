package accounts

import "time"

// LinkedAccount is a trading account the user has attached to their
// journal. Key by the external account id; credentials are never
// stored here, only the selection and display metadata.
type LinkedAccount struct {
	AccountID   string    `gorm:"primaryKey;column:account_id" json:"accountId"`
	Platform    string    `gorm:"column:platform;index" json:"platform"`
	Environment string    `gorm:"column:environment" json:"environment"`
	Name        string    `gorm:"column:name" json:"name"`
	Server      string    `gorm:"column:server" json:"server"`
	Currency    string    `gorm:"column:currency" json:"currency"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName fixes the table name independent of gorm pluralization.
func (LinkedAccount) TableName() string { return "linked_accounts" }
