package domain

import "time"

// Achievement categories.
const (
	CategoryTransactions = "transactions"
	CategorySavings      = "savings"
	CategoryTiers        = "tiers"
	CategoryBatching     = "batching"
	CategoryConsistency  = "consistency"
	CategorySpecial      = "special"
)

// Achievement requirement types. The streak, speed and early-user types
// have no measurement source yet; their catalog entries stay locked.
const (
	RequireTransactionCount  = "transaction_count"
	RequireTotalSavings      = "total_savings"
	RequireTierLevel         = "tier_level"
	RequireBatchCount        = "batch_count"
	RequireBatchSize         = "batch_size"
	RequirePerfectDay        = "perfect_success"
	RequireStreakDays        = "streak_days"
	RequireSpeedTransactions = "speed_transactions"
	RequireEarlyUser         = "early_user"
)

// AchievementRequirement is a single threshold the user must reach.
type AchievementRequirement struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Achievement is one entry of the fixed gamification catalog.
type Achievement struct {
	ID          string                 `json:"id"`
	Category    string                 `json:"category"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Requirement AchievementRequirement `json:"requirement"`
	Points      int                    `json:"points"`
	Badge       string                 `json:"badge"`
	Rarity      string                 `json:"rarity"`
}

// AchievementUnlock records that an achievement has been earned.
type AchievementUnlock struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlockedAt"`
	Points     int       `json:"points"`
}

var achievements = []Achievement{
	{
		ID: "first_transaction", Category: CategoryTransactions,
		Name: "First Steps", Description: "Complete your first Gateway transaction",
		Requirement: AchievementRequirement{Type: RequireTransactionCount, Value: 1},
		Points:      100, Badge: "bronze", Rarity: "common",
	},
	{
		ID: "ten_transactions", Category: CategoryTransactions,
		Name: "Getting Started", Description: "Complete 10 transactions",
		Requirement: AchievementRequirement{Type: RequireTransactionCount, Value: 10},
		Points:      250, Badge: "silver", Rarity: "common",
	},
	{
		ID: "fifty_transactions", Category: CategoryTransactions,
		Name: "Gateway Regular", Description: "Complete 50 transactions",
		Requirement: AchievementRequirement{Type: RequireTransactionCount, Value: 50},
		Points:      500, Badge: "gold", Rarity: "rare",
	},
	{
		ID: "hundred_transactions", Category: CategoryTransactions,
		Name: "Century Club", Description: "Complete 100 transactions",
		Requirement: AchievementRequirement{Type: RequireTransactionCount, Value: 100},
		Points:      1000, Badge: "platinum", Rarity: "epic",
	},
	{
		ID: "first_savings", Category: CategorySavings,
		Name: "Smart Saver", Description: "Save your first 0.001 SOL",
		Requirement: AchievementRequirement{Type: RequireTotalSavings, Value: 0.001},
		Points:      150, Badge: "bronze", Rarity: "common",
	},
	{
		ID: "big_saver", Category: CategorySavings,
		Name: "Master Optimizer", Description: "Save 0.1 SOL in total",
		Requirement: AchievementRequirement{Type: RequireTotalSavings, Value: 0.1},
		Points:      750, Badge: "gold", Rarity: "rare",
	},
	{
		ID: "whale_saver", Category: CategorySavings,
		Name: "Whale Optimizer", Description: "Save 1 SOL in total",
		Requirement: AchievementRequirement{Type: RequireTotalSavings, Value: 1.0},
		Points:      2000, Badge: "platinum", Rarity: "legendary",
	},
	{
		ID: "basic_tier", Category: CategoryTiers,
		Name: "Rising Star", Description: "Reach Basic tier",
		Requirement: AchievementRequirement{Type: RequireTierLevel, Value: 1},
		Points:      300, Badge: "silver", Rarity: "common",
	},
	{
		ID: "premium_tier", Category: CategoryTiers,
		Name: "Premium Member", Description: "Reach Premium tier",
		Requirement: AchievementRequirement{Type: RequireTierLevel, Value: 2},
		Points:      750, Badge: "gold", Rarity: "rare",
	},
	{
		ID: "vip_tier", Category: CategoryTiers,
		Name: "VIP Legend", Description: "Reach VIP tier",
		Requirement: AchievementRequirement{Type: RequireTierLevel, Value: 3},
		Points:      2000, Badge: "platinum", Rarity: "epic",
	},
	{
		ID: "first_batch", Category: CategoryBatching,
		Name: "Batch Master", Description: "Execute your first batch transaction",
		Requirement: AchievementRequirement{Type: RequireBatchCount, Value: 1},
		Points:      200, Badge: "bronze", Rarity: "common",
	},
	{
		ID: "big_batch", Category: CategoryBatching,
		Name: "Efficiency Expert", Description: "Execute a batch with 10+ transactions",
		Requirement: AchievementRequirement{Type: RequireBatchSize, Value: 10},
		Points:      500, Badge: "gold", Rarity: "rare",
	},
	{
		ID: "batch_addict", Category: CategoryBatching,
		Name: "Batch Enthusiast", Description: "Execute 20 batch transactions",
		Requirement: AchievementRequirement{Type: RequireBatchCount, Value: 20},
		Points:      1000, Badge: "platinum", Rarity: "epic",
	},
	{
		ID: "seven_day_streak", Category: CategoryConsistency,
		Name: "Consistent User", Description: "Transact for 7 days in a row",
		Requirement: AchievementRequirement{Type: RequireStreakDays, Value: 7},
		Points:      500, Badge: "silver", Rarity: "rare",
	},
	{
		ID: "thirty_day_streak", Category: CategoryConsistency,
		Name: "Dedicated Pro", Description: "Transact for 30 days in a row",
		Requirement: AchievementRequirement{Type: RequireStreakDays, Value: 30},
		Points:      2500, Badge: "platinum", Rarity: "legendary",
	},
	{
		ID: "perfect_day", Category: CategorySpecial,
		Name: "Perfect Day", Description: "100% success rate with 10+ transactions in a day",
		Requirement: AchievementRequirement{Type: RequirePerfectDay, Value: 10},
		Points:      750, Badge: "gold", Rarity: "epic",
	},
	{
		ID: "speed_demon", Category: CategorySpecial,
		Name: "Speed Demon", Description: "Complete 10 transactions in under 1 minute total",
		Requirement: AchievementRequirement{Type: RequireSpeedTransactions, Value: 10},
		Points:      1000, Badge: "gold", Rarity: "epic",
	},
	{
		ID: "early_adopter", Category: CategorySpecial,
		Name: "Early Adopter", Description: "One of the first 100 Gateway users",
		Requirement: AchievementRequirement{Type: RequireEarlyUser, Value: 100},
		Points:      5000, Badge: "legendary", Rarity: "legendary",
	},
}

// AllAchievements returns the fixed achievement catalog.
func AllAchievements() []Achievement {
	out := make([]Achievement, len(achievements))
	copy(out, achievements)
	return out
}

// AchievementByID looks up a catalog entry. Returns false for unknown ids.
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
