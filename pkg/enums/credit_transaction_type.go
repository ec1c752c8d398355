package enums

import "fmt"

// CreditTransactionType maps to the credit_transaction_type enum in Postgres.
type CreditTransactionType string

const (
	CreditTransactionTypePurchase  CreditTransactionType = "purchase"
	CreditTransactionTypeDeduction CreditTransactionType = "deduction"
	CreditTransactionTypeRefund    CreditTransactionType = "refund"
	CreditTransactionTypeExpiry    CreditTransactionType = "expiry"
)

var validCreditTransactionTypes = []CreditTransactionType{
	CreditTransactionTypePurchase,
	CreditTransactionTypeDeduction,
	CreditTransactionTypeRefund,
	CreditTransactionTypeExpiry,
}

// String implements fmt.Stringer.
func (t CreditTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t CreditTransactionType) IsValid() bool {
	for _, candidate := range validCreditTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCreditTransactionType converts raw input into CreditTransactionType.
func ParseCreditTransactionType(value string) (CreditTransactionType, error) {
	for _, candidate := range validCreditTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit transaction type %q", value)
}
