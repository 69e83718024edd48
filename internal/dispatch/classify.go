package dispatch

import "github.com/guiyumin/streamdl/internal/core/config"

// Strategy is the response family chosen for a request.
type Strategy int

const (
	StrategyRaw Strategy = iota
	StrategyAudio
	StrategyCustom
)

func (s Strategy) String() string {
	switch s {
	case StrategyAudio:
		return "audio"
	case StrategyCustom:
		return "custom"
	default:
		return "raw"
	}
}

// Classify picks exactly one strategy. Custom conversion wins over audio,
// and each needs its feature switched on.
func Classify(req MediaRequest, cfg config.ConvertConfig) Strategy {
	switch {
	case cfg.Advanced && req.CustomConvert && req.CustomFormat != "":
		return StrategyCustom
	case cfg.Enabled && req.Audio:
		return StrategyAudio
	default:
		return StrategyRaw
	}
}
