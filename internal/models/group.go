package models

import "time"

type GroupStrategy string

const (
	StrategySnake       GroupStrategy = "snake"
	StrategyComplement  GroupStrategy = "complement"
	StrategyLeaderboard GroupStrategy = "leaderboard"
	StrategyManual      GroupStrategy = "manual"
)

type Group struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	Name          string        `json:"name" gorm:"not null;size:100"`
	Description   *string       `json:"description" gorm:"type:text"`
	TestID        *uint         `json:"test_id" gorm:"index"`
	CategoryID    *uint         `json:"category_id" gorm:"index"`
	Strategy      GroupStrategy `json:"strategy" gorm:"not null;size:20"`
	AverageScore  float64       `json:"average_score"`
	ScoreVariance float64       `json:"score_variance"`
	BalanceScore  float64       `json:"balance_score"`
	CreatedBy     string        `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMember struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	GroupID  uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_member"`
	UserID   string    `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_group_member;index"`
	Score    float64   `json:"score"`
	IsLeader bool      `json:"is_leader"`
	JoinedAt time.Time `json:"joined_at"`

	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
