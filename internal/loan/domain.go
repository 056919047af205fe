// Package loan holds the amortization engine and the loan lifecycle
// state machine.
package loan

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates loan products.
type Type string

const (
	TypePersonal  Type = "PERSONAL"
	TypeHome      Type = "HOME"
	TypeCar       Type = "CAR"
	TypeEducation Type = "EDUCATION"
	TypeBusiness  Type = "BUSINESS"
)

// Status enumerates lifecycle states.
// PENDING → APPROVED → ACTIVE → {CLOSED, DEFAULTED}; PENDING → REJECTED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusRejected  Status = "REJECTED"
	StatusClosed    Status = "CLOSED"
	StatusDefaulted Status = "DEFAULTED"
)

// Loan model. Start, end, and next-payment dates stay nil until approval.
type Loan struct {
	ID              int64
	Number          string
	Type            Type
	Principal       decimal.Decimal
	InterestRate    decimal.Decimal // annual, percent
	TermMonths      int
	EMI             decimal.Decimal
	OwnerID         int64
	StartDate       *time.Time
	EndDate         *time.Time
	NextPaymentDate *time.Time
	Status          Status
	CreditScore     int
	Purpose         string
	PaymentsMade    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// product carries per-type pricing used at application and for
// eligibility ceilings.
type product struct {
	rate    decimal.Decimal
	maxTerm int
}

var products = map[Type]product{
	TypePersonal:  {rate: decimal.New(120, -1), maxTerm: 60},  // 12.0% up to 5 years
	TypeHome:      {rate: decimal.New(85, -1), maxTerm: 360},  // 8.5% up to 30 years
	TypeCar:       {rate: decimal.New(95, -1), maxTerm: 84},   // 9.5% up to 7 years
	TypeEducation: {rate: decimal.New(70, -1), maxTerm: 120},  // 7.0% up to 10 years
	TypeBusiness:  {rate: decimal.New(110, -1), maxTerm: 120}, // 11.0% up to 10 years
}

// RateFor returns the annual percentage rate for a loan type.
func RateFor(t Type) (decimal.Decimal, bool) {
	p, ok := products[t]
	if !ok {
		return decimal.Decimal{}, false
	}
	return p.rate, true
}

// NewLoanNumber returns a fresh loan number.
func NewLoanNumber() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LN" + hex[:8]
}
