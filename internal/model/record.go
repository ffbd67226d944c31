package model

import "time"

// HumanizationRecord is an immutable original/rewritten text pair.
type HumanizationRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	OriginalText  string    `json:"original_text"`
	HumanizedText string    `json:"humanized_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreditDebit marks a record whose credit has been consumed.
type CreditDebit struct {
	RecordID  string
	UserID    string
	CreatedAt time.Time
}
