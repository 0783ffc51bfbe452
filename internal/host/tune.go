package host

// BoostedPriority is the nice value applied on the specialized hardware.
const BoostedPriority = -10

// Tuner applies process-level tuning. Errors are reported but callers ignore them.
type Tuner interface {
	Tune() error
}

// TunerFunc adapts a function to Tuner.
type TunerFunc func() error

func (f TunerFunc) Tune() error { return f() }

// PriorityTuner raises the scheduling priority of the current process.
type PriorityTuner struct {
	Nice int
}

// NewPriorityTuner returns a tuner for BoostedPriority.
func NewPriorityTuner() *PriorityTuner {
	return &PriorityTuner{Nice: BoostedPriority}
}
