package reconcile

import "fmt"

const maxIDLength = 128

// ValidateDebitEvent validates debit event payload fields.
func ValidateDebitEvent(event DebitEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(event.UserID) > maxIDLength {
		return fmt.Errorf("user id too long")
	}
	if event.RecordID == "" {
		return fmt.Errorf("record id is required")
	}
	if len(event.RecordID) > maxIDLength {
		return fmt.Errorf("record id too long")
	}
	if event.FailedAt <= 0 {
		return fmt.Errorf("failed_at must be set")
	}
	return nil
}
