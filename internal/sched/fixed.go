package sched

// Fixed is a 17.14 fixed-point number, the representation Pintos-KAIST uses
// for recent_cpu and load_avg (spec.md §4.2) so that MLFQ arithmetic never
// touches a floating-point unit.
type Fixed int32

const fixedShift = 14
const fixedOne = Fixed(1 << fixedShift)

// FromInt converts an integer to fixed point.
func FromInt(n int) Fixed { return Fixed(n) << fixedShift }

// ToIntTrunc truncates toward zero, as Pintos's CONV_TO_INT (no rounding) does
// for display purposes.
func (f Fixed) ToIntTrunc() int { return int(f / fixedOne) }

// ToIntRound rounds to nearest, as Pintos's fixed-point conversion macro does
// when computing recent_cpu/priority for scheduling decisions.
func (f Fixed) ToIntRound() int {
	if f >= 0 {
		return int((f + fixedOne/2) >> fixedShift)
	}
	return int((f - fixedOne/2) / fixedOne)
}

func (f Fixed) Add(g Fixed) Fixed { return f + g }
func (f Fixed) Sub(g Fixed) Fixed { return f - g }

func (f Fixed) AddInt(n int) Fixed { return f + FromInt(n) }
func (f Fixed) SubInt(n int) Fixed { return f - FromInt(n) }

func (f Fixed) Mul(g Fixed) Fixed {
	return Fixed((int64(f) * int64(g)) >> fixedShift)
}

func (f Fixed) MulInt(n int) Fixed { return f * Fixed(n) }

func (f Fixed) Div(g Fixed) Fixed {
	return Fixed((int64(f) << fixedShift) / int64(g))
}

func (f Fixed) DivInt(n int) Fixed { return f / Fixed(n) }
