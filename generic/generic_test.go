package generic_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/generic"
)

// =============================================================================
// AMOUNT
// =============================================================================

func TestAmount_Arithmetic_KeepsUnit(t *testing.T) {
	a := generic.Points(decimal.RequireFromString("120"))
	b := generic.Points(decimal.RequireFromString("100.5"))

	assert.Equal(t, "19.5 points", a.Sub(b).String())
	assert.Equal(t, "220.5 points", a.Add(b).String())
	assert.Equal(t, generic.UnitPoints, a.Mul(decimal.NewFromFloat(1.5)).Unit)
	assert.True(t, b.Sub(a).IsNegative())
	assert.True(t, a.Sub(a).IsZero())
}

func TestAmount_Min(t *testing.T) {
	discount := generic.Money(decimal.NewFromInt(30))
	gross := generic.Money(decimal.RequireFromString("20.00"))

	assert.True(t, discount.Min(gross).Equal(gross))
	assert.True(t, gross.Min(discount).Equal(gross))
}

func TestAmount_Equal_ComparesUnit(t *testing.T) {
	ten := decimal.NewFromInt(10)

	assert.True(t, generic.Points(ten).Equal(generic.Points(decimal.RequireFromString("10.00"))))
	assert.False(t, generic.Points(ten).Equal(generic.Liters(ten)))
}

func TestParseAmount(t *testing.T) {
	got, err := generic.ParseAmount("32.50", generic.UnitCurrency)
	require.NoError(t, err)
	assert.True(t, got.Value.Equal(decimal.RequireFromString("32.5")))
	assert.Equal(t, generic.UnitCurrency, got.Unit)

	_, err = generic.ParseAmount("thirty", generic.UnitCurrency)
	assert.Error(t, err)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestDay_CoversWholeCalendarDay(t *testing.T) {
	noon := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

	p := generic.Day(noon)

	assert.Equal(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2024, time.March, 14, 23, 59, 59, 999999999, time.UTC), p.End)
	assert.Equal(t, generic.Day(noon.AddDate(0, 0, 1)).Start, p.End.Add(time.Nanosecond), "next day starts right after")
}

func TestDays_RejectsReversedRange(t *testing.T) {
	first := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

	p, err := generic.Days(first, first)
	require.NoError(t, err)
	assert.Equal(t, generic.Day(first), p)

	_, err = generic.Days(first, first.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestWeek_MondayToSunday(t *testing.T) {
	monday := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)

	for offset := 0; offset < 7; offset++ {
		p := generic.Week(monday.AddDate(0, 0, offset).Add(15 * time.Hour))
		assert.Equal(t, monday, p.Start, "day %d", offset)
		assert.Equal(t, time.Date(2024, time.March, 17, 23, 59, 59, 999999999, time.UTC), p.End)
	}
}

func TestMonthAndYear(t *testing.T) {
	feb := generic.Month(2024, time.February)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 999999999, time.UTC), feb.End, "leap year")

	dec := generic.Month(2024, time.December)
	assert.Equal(t, time.Date(2024, time.December, 31, 23, 59, 59, 999999999, time.UTC), dec.End)

	y := generic.Year(2024)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), y.Start)
	assert.Equal(t, dec.End, y.End)
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := generic.NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("c-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, km.Len(), "released keys are dropped")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := generic.NewKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
	assert.Equal(t, 1, km.Len())
}
