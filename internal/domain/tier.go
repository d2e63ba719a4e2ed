package domain

// Tier IDs, lowest to highest.
const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
	TierVIP     = "vip"
)

// TierBenefits are the static benefit constants attached to a tier.
type TierBenefits struct {
	PriorityMultiplier float64 `json:"priorityMultiplier"`
	FeeDiscount        float64 `json:"feeDiscount"` // fraction, 0.20 = 20% off
	MaxBatchSize       int     `json:"maxBatchSize"`
	DedicatedLane      bool    `json:"dedicatedLane"`
	SpeedBoost         float64 `json:"confirmationSpeedBoost"`
	Analytics          string  `json:"analytics"`
	Support            string  `json:"support"`
}

// TierRequirements are the static qualification thresholds for a tier.
// Both must be met: successful transaction count AND cumulative successful
// volume in DCP.
type TierRequirements struct {
	MinTransactions int64   `json:"minTransactions"`
	MinVolume       float64 `json:"minVolume"`
}

// Tier bundles an id with its benefits and requirements.
type Tier struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Level        int              `json:"level"`
	Benefits     TierBenefits     `json:"benefits"`
	Requirements TierRequirements `json:"requirements"`
}

var tiers = []Tier{
	{
		ID:    TierFree,
		Name:  "Free",
		Level: 0,
		Benefits: TierBenefits{
			PriorityMultiplier: 1,
			FeeDiscount:        0,
			MaxBatchSize:       1,
			DedicatedLane:      false,
			SpeedBoost:         1,
			Analytics:          "basic",
			Support:            "community",
		},
		Requirements: TierRequirements{MinTransactions: 0, MinVolume: 0},
	},
	{
		ID:    TierBasic,
		Name:  "Basic",
		Level: 1,
		Benefits: TierBenefits{
			PriorityMultiplier: 1.5,
			FeeDiscount:        0.05,
			MaxBatchSize:       5,
			DedicatedLane:      false,
			SpeedBoost:         2,
			Analytics:          "standard",
			Support:            "email",
		},
		Requirements: TierRequirements{MinTransactions: 10, MinVolume: 1000},
	},
	{
		ID:    TierPremium,
		Name:  "Premium",
		Level: 2,
		Benefits: TierBenefits{
			PriorityMultiplier: 3,
			FeeDiscount:        0.20,
			MaxBatchSize:       20,
			DedicatedLane:      true,
			SpeedBoost:         5,
			Analytics:          "advanced",
			Support:            "priority",
		},
		Requirements: TierRequirements{MinTransactions: 50, MinVolume: 10000},
	},
	{
		ID:    TierVIP,
		Name:  "VIP",
		Level: 3,
		Benefits: TierBenefits{
			PriorityMultiplier: 5,
			FeeDiscount:        0.50,
			MaxBatchSize:       100,
			DedicatedLane:      true,
			SpeedBoost:         10,
			Analytics:          "enterprise",
			Support:            "dedicated",
		},
		Requirements: TierRequirements{MinTransactions: 200, MinVolume: 100000},
	},
}

// AllTiers returns all tiers ordered by level ascending.
func AllTiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierByID looks up a tier by its id. Unknown ids fall back to Free.
func TierByID(id string) Tier {
	for _, t := range tiers {
		if t.ID == id {
			return t
		}
	}
	return tiers[0]
}

// TierByLevel looks up a tier by level. Returns false if no such level.
func TierByLevel(level int) (Tier, bool) {
	for _, t := range tiers {
		if t.Level == level {
			return t, true
		}
	}
	return Tier{}, false
}
