package loan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateEMIValidation(t *testing.T) {
	_, err := CalculateEMI(decimal.Zero, dec("8.5"), 240)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = CalculateEMI(dec("1000"), dec("8.5"), 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = CalculateEMI(dec("1000"), dec("-1"), 12)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCalculateEMIZeroRate(t *testing.T) {
	emi, err := CalculateEMI(dec("1200.00"), decimal.Zero, 12)
	require.NoError(t, err)
	require.True(t, emi.Equal(dec("100.00")), "got %s", emi)

	emi, err = CalculateEMI(dec("1000.00"), decimal.Zero, 7)
	require.NoError(t, err)
	require.True(t, emi.Equal(dec("142.86")), "got %s", emi)

	// A repeating quotient rounds up, never down, so the term still
	// repays the full principal.
	emi, err = CalculateEMI(dec("100.00"), decimal.Zero, 3)
	require.NoError(t, err)
	require.True(t, emi.Equal(dec("33.34")), "got %s", emi)
	total := emi.Mul(decimal.NewFromInt(3))
	require.True(t, total.GreaterThanOrEqual(dec("100.00")), "EMI %s over 3 months repays only %s", emi, total)
}

func TestCalculateEMICoversPrincipal(t *testing.T) {
	emi, err := CalculateEMI(dec("120000.00"), dec("8.5"), 240)
	require.NoError(t, err)

	total := emi.Mul(decimal.NewFromInt(240))
	require.True(t, total.GreaterThanOrEqual(dec("120000.00")), "EMI %s over 240 months repays only %s", emi, total)
}

func TestAmortizationScheduleReconcilesToPrincipal(t *testing.T) {
	principal := dec("120000.00")
	schedule, err := AmortizationSchedule(principal, dec("8.5"), 240)
	require.NoError(t, err)
	require.Len(t, schedule, 240)

	sum := decimal.Zero
	for _, row := range schedule {
		sum = sum.Add(row.Principal)
	}
	require.True(t, sum.Equal(principal), "principal components sum to %s", sum)

	final := schedule[len(schedule)-1]
	require.True(t, final.Balance.IsZero(), "final balance %s", final.Balance)
	require.True(t, final.EMI.Equal(final.Principal.Add(final.Interest)))
}

func TestAmortizationScheduleZeroRate(t *testing.T) {
	schedule, err := AmortizationSchedule(dec("1000.00"), decimal.Zero, 7)
	require.NoError(t, err)
	require.Len(t, schedule, 7)

	sum := decimal.Zero
	for _, row := range schedule {
		require.True(t, row.Interest.IsZero())
		sum = sum.Add(row.Principal)
	}
	require.True(t, sum.Equal(dec("1000.00")))
	require.True(t, schedule[6].Balance.IsZero())
	// The last installment absorbs the division remainder.
	require.True(t, schedule[6].EMI.Equal(dec("142.84")), "got %s", schedule[6].EMI)
}

func TestAmortizationBalancesDecrease(t *testing.T) {
	schedule, err := AmortizationSchedule(dec("50000.00"), dec("12.0"), 60)
	require.NoError(t, err)
	prev := dec("50000.00")
	for _, row := range schedule {
		require.True(t, row.Balance.LessThan(prev), "period %d balance %s did not decrease from %s", row.Period, row.Balance, prev)
		prev = row.Balance
	}
}

func TestEligibleAmountZeroAtCeiling(t *testing.T) {
	got, err := EligibleAmount(dec("10000.00"), dec("5000.00"), TypeHome, 760)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = EligibleAmount(dec("10000.00"), dec("7500.00"), TypeHome, 760)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestEligibleAmountCreditBands(t *testing.T) {
	income, existing := dec("10000.00"), dec("2000.00")
	base, err := EligibleAmount(income, existing, TypeHome, 800)
	require.NoError(t, err)
	require.True(t, base.GreaterThan(decimal.Zero))

	cases := map[int]decimal.Decimal{
		750: decimal.New(10, -1),
		700: decimal.New(9, -1),
		650: decimal.New(8, -1),
		600: decimal.New(7, -1),
		599: decimal.New(5, -1),
	}
	for score, factor := range cases {
		got, err := EligibleAmount(income, existing, TypeHome, score)
		require.NoError(t, err)
		want := money.RoundMinor(base.Mul(factor))
		require.True(t, got.Equal(want), "score %d: got %s want %s", score, got, want)
	}
}

func TestEligibleAmountValidation(t *testing.T) {
	_, err := EligibleAmount(decimal.Zero, decimal.Zero, TypeHome, 700)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = EligibleAmount(dec("5000"), dec("-1"), TypeHome, 700)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = EligibleAmount(dec("5000"), decimal.Zero, "PAYDAY", 700)
	require.ErrorIs(t, err, shared.ErrValidation)
}
