package journal

import (
	"strings"

	"github.com/google/uuid"
)

// Number tags keep the journal's identifier spaces disjoint.
const (
	transactionTag = "TXN"
	referenceTag   = "REF"
)

// TransactionNumber returns a fresh globally unique transaction number.
func TransactionNumber() string {
	return transactionTag + uuidDigits(16)
}

// ReferenceNumber returns a fresh reference number.
func ReferenceNumber() string {
	return referenceTag + uuidDigits(8)
}

func uuidDigits(n int) string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return hex[:n]
}
