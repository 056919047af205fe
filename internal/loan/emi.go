package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// powScale bounds the digits carried through the (1+r)^n expansion.
const powScale = 20

var (
	one  = decimal.New(1, 0)
	half = decimal.New(5, -1)
)

// CalculateEMI returns the equal monthly installment for a loan:
// P·r·(1+r)^n / ((1+r)^n − 1), with r the monthly rate, rounded to the
// minor unit half-up. A zero rate degrades to simple division, rounded
// up so the installments still cover the full principal.
func CalculateEMI(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if principal.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: loan principal must be positive", shared.ErrValidation)
	}
	if termMonths <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: loan term must be positive", shared.ErrValidation)
	}
	if annualRatePercent.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: interest rate cannot be negative", shared.ErrValidation)
	}
	if annualRatePercent.Sign() == 0 {
		// EMI times term must never fall short of the principal, so
		// the division rounds toward the ceiling, not half-up.
		exact := principal.DivRound(decimal.NewFromInt(int64(termMonths)), money.RateScale)
		return exact.RoundCeil(money.MinorScale), nil
	}

	r := money.MonthlyRate(annualRatePercent)
	power := powInt(one.Add(r), termMonths)
	numerator := principal.Mul(r).Mul(power)
	denominator := power.Sub(one)
	return numerator.DivRound(denominator, money.MinorScale), nil
}

// Installment is one row of an amortization schedule.
type Installment struct {
	Period    int
	EMI       decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Balance   decimal.Decimal
}

// AmortizationSchedule expands a loan into per-month installments. The
// final row forces its principal component to the remaining balance and
// recomputes that row's EMI, absorbing cumulative rounding drift so the
// principal components sum to the original principal exactly.
func AmortizationSchedule(principal, annualRatePercent decimal.Decimal, termMonths int) ([]Installment, error) {
	emi, err := CalculateEMI(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}

	r := money.MonthlyRate(annualRatePercent)
	remaining := money.RoundMinor(principal)
	schedule := make([]Installment, 0, termMonths)
	for period := 1; period <= termMonths; period++ {
		interest := money.RoundMinor(remaining.Mul(r))
		principalPaid := emi.Sub(interest)
		rowEMI := emi
		if period == termMonths {
			principalPaid = remaining
			rowEMI = principalPaid.Add(interest)
		}
		remaining = remaining.Sub(principalPaid)
		schedule = append(schedule, Installment{
			Period:    period,
			EMI:       rowEMI,
			Principal: principalPaid,
			Interest:  interest,
			Balance:   remaining,
		})
	}
	return schedule, nil
}

// EligibleAmount bounds a new loan by a 50% debt-to-income ceiling,
// inverts the EMI formula at the product's rate and maximum term, and
// scales the result by the credit-score band.
func EligibleAmount(monthlyIncome, existingEMI decimal.Decimal, loanType Type, creditScore int) (decimal.Decimal, error) {
	if monthlyIncome.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: monthly income must be positive", shared.ErrValidation)
	}
	if existingEMI.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: existing EMI cannot be negative", shared.ErrValidation)
	}
	p, ok := products[loanType]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: unknown loan type %q", shared.ErrValidation, loanType)
	}

	ceiling := monthlyIncome.Mul(half)
	if existingEMI.GreaterThanOrEqual(ceiling) {
		return decimal.Zero, nil
	}
	budget := ceiling.Sub(existingEMI)

	// P = EMI·((1+r)^n − 1) / (r·(1+r)^n)
	r := money.MonthlyRate(p.rate)
	power := powInt(one.Add(r), p.maxTerm)
	numerator := budget.Mul(power.Sub(one))
	denominator := r.Mul(power)
	eligible := numerator.DivRound(denominator, money.MinorScale)

	return money.RoundMinor(eligible.Mul(creditFactor(creditScore))), nil
}

// creditFactor maps a credit score to an eligibility multiplier.
func creditFactor(score int) decimal.Decimal {
	switch {
	case score >= 750:
		return decimal.New(10, -1)
	case score >= 700:
		return decimal.New(9, -1)
	case score >= 650:
		return decimal.New(8, -1)
	case score >= 600:
		return decimal.New(7, -1)
	default:
		return decimal.New(5, -1)
	}
}

// powInt raises base to a non-negative integer power, truncating carried
// digits to powScale each step to keep magnitudes bounded over long
// terms.
func powInt(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for i := 0; i < n; i++ {
		result = result.Mul(base).Round(powScale)
	}
	return result
}
