// Package indicator provides technical indicator series used by the
// strategy evaluator. All functions are pure: given the same price
// sequence they return the same output, and leading entries that cannot
// be computed yet are NaN.
package indicator

import (
	"errors"
	"math"
)

var ErrNotEnoughData = errors.New("not enough data points for period")

// EMA computes the exponential moving average series over prices.
// The result has the same length as the input. Entries before index
// period-1 are NaN. The seed at index period-1 is the simple average of
// the first period prices; each later entry uses the standard recursive
// form with multiplier 2/(period+1).
func EMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, ErrNotEnoughData
	}

	out := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	out[period-1] = sum / float64(period)

	mult := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*mult + out[i-1]
	}
	return out, nil
}

// SMA computes the simple moving average series over prices with a
// trailing window of period entries. Entries before index period-1 are NaN.
func SMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, ErrNotEnoughData
	}

	out := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(prices); i++ {
		sum += prices[i] - prices[i-period]
		out[i] = sum / float64(period)
	}
	return out, nil
}

// RSI computes the relative strength index series over prices. Entries
// before index period are NaN. For each later index the average gain and
// loss are taken over the trailing period successive differences. When
// the average loss is zero RSI is exactly 100, never a division by zero.
func RSI(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return nil, ErrNotEnoughData
	}

	out := make([]float64, len(prices))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	for i := period; i < len(prices); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			change := prices[j] - prices[j-1]
			if change > 0 {
				gain += change
			} else {
				loss -= change
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)

		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out, nil
}
