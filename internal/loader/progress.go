package loader

// Progress checkpoints reported during a load.
const (
	ProgressHeader  = 0.3 // metadata extracted and header located
	ProgressParsed  = 0.6 // delimited records read
	ProgressCoerced = 0.9 // dates and numbers converted
	ProgressSorted  = 1.0 // rows ordered by date
)

// ProgressObserver receives monotonically increasing fractions in [0, 1].
// Progress is advisory and never affects parsing.
type ProgressObserver interface {
	OnProgress(fraction float64)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(fraction float64)

func (f ProgressFunc) OnProgress(fraction float64) { f(fraction) }

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) OnProgress(float64) {}
