package scheduler

import (
	"math/bits"
	"math/rand"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// DatesInOrder enumerates every date in [start, end] stepping by increment
// days, arranged per the §4.5 "Date ordering" policy.
func DatesInOrder(start, end time.Time, increment int, order string) []time.Time {
	if increment <= 0 {
		increment = 1
	}
	var all []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, increment) {
		all = append(all, d)
	}

	switch order {
	case cmn.OrderForwards:
		return all
	case cmn.OrderRandom:
		return randomOrder(all)
	case cmn.OrderBinaryFill:
		return binaryFillOrder(all)
	default: // backwards is the default (§4.5)
		return reversed(all)
	}
}

func reversed(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[len(dates)-1-i] = d
	}
	return out
}

// randomOrder performs a Fisher-Yates shuffle seeded from the range length,
// so a given [start, end] always shuffles the same way across runs.
func randomOrder(dates []time.Time) []time.Time {
	out := append([]time.Time(nil), dates...)
	rng := rand.New(rand.NewSource(int64(len(out))))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// binaryFillOrder reverse-bit-orders the day offsets 0..N-1, giving fast
// uniform temporal coverage (§4.5): after any prefix of the traversal, the
// visited offsets are spread roughly evenly across the whole range.
func binaryFillOrder(dates []time.Time) []time.Time {
	n := len(dates)
	if n == 0 {
		return nil
	}
	width := bits.Len(uint(n - 1))
	if width == 0 {
		width = 1
	}
	size := 1 << width

	out := make([]time.Time, 0, n)
	seen := make([]bool, n)
	for i := 0; i < size; i++ {
		r := reverseBits(uint(i), width)
		if int(r) < n && !seen[r] {
			seen[r] = true
			out = append(out, dates[r])
		}
	}
	return out
}

func reverseBits(v uint, width int) uint {
	var r uint
	for i := 0; i < width; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}
