package domain

// Condition describes the synthetic network congestion level.
type Condition string

// Network conditions, least to most congested.
const (
	ConditionLow      Condition = "low"
	ConditionNormal   Condition = "normal"
	ConditionHigh     Condition = "high"
	ConditionCritical Condition = "critical"
)

// Channel IDs for the fixed delivery paths.
const (
	ChannelRPC     = "rpc"
	ChannelJito    = "jito"
	ChannelTriton  = "triton"
	ChannelGateway = "gateway"
)

// Channel speed labels used by the speed-prioritized scoring bonus.
const (
	SpeedMedium    = "medium"
	SpeedFast      = "fast"
	SpeedVeryFast  = "very-fast"
	SpeedOptimized = "optimized"
)

// Channel is a fixed synthetic delivery path with static cost and
// reliability characteristics.
type Channel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	BaseCost    float64     `json:"baseCost"` // SOL per transaction
	Speed       string      `json:"speed"`
	Reliability float64     `json:"reliability"`
	BestFor     []Condition `json:"bestFor"`
}

// SuitedFor reports whether the channel's static bestFor list contains
// the given condition.
func (c Channel) SuitedFor(cond Condition) bool {
	for _, b := range c.BestFor {
		if b == cond {
			return true
		}
	}
	return false
}

var channels = map[string]Channel{
	ChannelRPC: {
		ID:          ChannelRPC,
		Name:        "Standard RPC",
		BaseCost:    0.000005,
		Speed:       SpeedMedium,
		Reliability: 0.95,
		BestFor:     []Condition{ConditionLow, ConditionNormal},
	},
	ChannelJito: {
		ID:          ChannelJito,
		Name:        "Jito Bundles",
		BaseCost:    0.0001,
		Speed:       SpeedFast,
		Reliability: 0.97,
		BestFor:     []Condition{ConditionHigh, ConditionCritical},
	},
	ChannelTriton: {
		ID:          ChannelTriton,
		Name:        "Triton Priority",
		BaseCost:    0.00005,
		Speed:       SpeedVeryFast,
		Reliability: 0.98,
		BestFor:     []Condition{ConditionHigh, ConditionCritical},
	},
	ChannelGateway: {
		ID:          ChannelGateway,
		Name:        "Gateway Optimized",
		BaseCost:    0.0001,
		Speed:       SpeedOptimized,
		Reliability: 0.99,
		BestFor:     []Condition{ConditionNormal, ConditionHigh, ConditionCritical},
	},
}

// ChannelByID looks up a channel definition. Returns false for unknown ids.
func ChannelByID(id string) (Channel, bool) {
	c, ok := channels[id]
	return c, ok
}

// AllChannels returns the fixed channel set.
func AllChannels() []Channel {
	return []Channel{
		channels[ChannelRPC],
		channels[ChannelJito],
		channels[ChannelTriton],
		channels[ChannelGateway],
	}
}

// ChannelPerformance tracks the EMA-smoothed delivery history of one
// channel. SuccessRate and AvgConfirmTimeMs are exponential moving
// averages; TotalTxs is a monotonic counter.
type ChannelPerformance struct {
	SuccessRate      float64 `json:"successRate"`
	AvgConfirmTimeMs float64 `json:"avgConfirmTime"`
	TotalTxs         int64   `json:"totalTxs"`
}

// DefaultChannelPerformance returns the seed performance map used before
// any routing results have been recorded.
func DefaultChannelPerformance() map[string]*ChannelPerformance {
	return map[string]*ChannelPerformance{
		ChannelRPC:     {SuccessRate: 0.95, AvgConfirmTimeMs: 8000},
		ChannelJito:    {SuccessRate: 0.97, AvgConfirmTimeMs: 4000},
		ChannelTriton:  {SuccessRate: 0.98, AvgConfirmTimeMs: 2000},
		ChannelGateway: {SuccessRate: 0.99, AvgConfirmTimeMs: 3000},
	}
}
