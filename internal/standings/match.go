package standings

import "time"

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchCompleted MatchStatus = "completed"
	MatchPostponed MatchStatus = "postponed"
	MatchCancelled MatchStatus = "cancelled"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchCompleted, MatchPostponed, MatchCancelled:
		return true
	}
	return false
}

type Match struct {
	ID          string      `bson:"_id" json:"id"`
	Season      string      `bson:"season" json:"season"`
	Division    string      `bson:"division" json:"division"`
	HomeTeam    string      `bson:"homeTeam" json:"homeTeam"`
	AwayTeam    string      `bson:"awayTeam" json:"awayTeam"`
	ScheduledAt time.Time   `bson:"scheduledAt" json:"scheduledAt"`
	Venue       string      `bson:"venue,omitempty" json:"venue,omitempty"`
	Status      MatchStatus `bson:"status" json:"status"`
	HomeScore   *int        `bson:"homeScore,omitempty" json:"homeScore,omitempty"`
	AwayScore   *int        `bson:"awayScore,omitempty" json:"awayScore,omitempty"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// Played reports whether the match counts towards the table.
func (m *Match) Played() bool {
	return m.Status == MatchCompleted && m.HomeScore != nil && m.AwayScore != nil
}

// SeasonDivision names one table.
type SeasonDivision struct {
	Season   string `bson:"season" json:"season"`
	Division string `bson:"division" json:"division"`
}
