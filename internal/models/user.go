package models

import "time"

// User represents a player account
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	OAuthProvider string    `json:"-"`
	OAuthSubject  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserProfile is the user plus the progress figures shown on the dashboard
type UserProfile struct {
	User
	TotalXP             int `json:"total_xp"`
	Level               int `json:"level"`
	WeeklyXP            int `json:"weekly_xp"`
	StreakDays          int `json:"streak_days"`
	ScenariosCompleted  int `json:"scenarios_completed"`
	LeaderboardPosition int `json:"leaderboard_position"`
}

// AuthResult is returned by login and registration
type AuthResult struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
