package model

// LevelSet holds one trading day's pivot levels. Loaded once per day and
// immutable for that day.
type LevelSet struct {
	BC     float64
	TC     float64
	R1     float64
	R2     float64
	R3     float64
	R4     float64
	S1     float64
	S2     float64
	S3     float64
	S4     float64
	Buffer float64
}

// Secondary returns the r1..r4/s1..s4 levels in evaluation order.
func (l LevelSet) Secondary() []float64 {
	return []float64{l.R1, l.R2, l.R3, l.R4, l.S1, l.S2, l.S3, l.S4}
}

// All returns every level including TC and BC, used for crossover checks.
func (l LevelSet) All() []float64 {
	return []float64{l.TC, l.BC, l.R1, l.R2, l.R3, l.R4, l.S1, l.S2, l.S3, l.S4}
}
