package plugin

import "fmt"

// Mode selects training or evaluation behavior for a plugin routine or a
// network forward pass. It is always passed explicitly; no plugin keeps a
// hidden training flag that silently changes output semantics.
type Mode int

const (
	// ModeTrain enables stochastic behavior (e.g. latent sampling) and
	// gradient recording.
	ModeTrain Mode = iota
	// ModeEval makes forward passes deterministic.
	ModeEval
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeEval:
		return "eval"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "train":
		return ModeTrain, nil
	case "eval":
		return ModeEval, nil
	default:
		return ModeEval, fmt.Errorf("unknown mode %q (supported: train, eval)", name)
	}
}
