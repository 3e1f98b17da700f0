package models

import "time"

// ProgressRecord is the persisted outcome of a user's play-through of a scenario
type ProgressRecord struct {
	UserID      int64      `json:"user_id"`
	ScenarioID  int64      `json:"scenario_id"`
	Completed   bool       `json:"completed"`
	XPEarned    int        `json:"xp_earned"`
	CurrentStep int        `json:"current_step"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LeaderboardEntry is one ranked row of the leaderboard
type LeaderboardEntry struct {
	Rank               int    `json:"rank"`
	UserID             int64  `json:"user_id"`
	Username           string `json:"username"`
	TotalXP            int    `json:"total_xp"`
	Level              int    `json:"level"`
	ScenariosCompleted int    `json:"scenarios_completed"`
}

// XPSummary aggregates a user's completed progress
type XPSummary struct {
	TotalXP            int
	WeeklyXP           int
	ScenariosCompleted int
}

// XPPerLevel is the amount of XP needed to go up one level
const XPPerLevel = 1000

// LevelForXP returns the level reached with the given total XP
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// StreakDays counts the consecutive UTC days, ending today or yesterday, on
// which at least one scenario was finished
func StreakDays(finished []time.Time, now time.Time) int {
	days := make(map[time.Time]bool, len(finished))
	for _, t := range finished {
		days[utcDay(t)] = true
	}

	day := utcDay(now)
	if !days[day] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
