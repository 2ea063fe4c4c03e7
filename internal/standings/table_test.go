package standings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(day int, home, away string, hs, as int) Match {
	return Match{
		HomeTeam: home, AwayTeam: away, Status: MatchCompleted,
		ScheduledAt: time.Date(2026, 3, day, 15, 0, 0, 0, time.UTC),
		HomeScore:   &hs, AwayScore: &as,
	}
}

func scheduledMatch(day int, home, away string) Match {
	return Match{HomeTeam: home, AwayTeam: away, Status: MatchScheduled, ScheduledAt: time.Date(2026, 4, day, 15, 0, 0, 0, time.UTC)}
}

func TestComputeTable(t *testing.T) {
	rows := Compute([]Match{
		result(8, "Rovers", "United", 1, 1),
		result(1, "Rovers", "City", 2, 0),
		result(15, "City", "United", 3, 1),
		scheduledMatch(1, "Athletic", "Rovers"),
	})
	require.Len(t, rows, 4)

	want := []struct {
		team                 string
		played, points, diff int
		form                 []string
	}{
		{"Rovers", 2, 4, 2, []string{"W", "D"}},
		{"City", 2, 3, 0, []string{"L", "W"}},
		{"United", 2, 1, -2, []string{"D", "L"}},
		{"Athletic", 0, 0, 0, []string{}},
	}
	for i, w := range want {
		r := rows[i]
		assert.Equal(t, i+1, r.Position)
		assert.Equal(t, w.team, r.Team)
		assert.Equal(t, w.played, r.Played, w.team)
		assert.Equal(t, w.points, r.Points, w.team)
		assert.Equal(t, w.diff, r.GoalDifference, w.team)
		assert.Equal(t, w.form, r.Form, w.team)
	}
	assert.Equal(t, 3, find(rows, "City").GoalsFor)
}

func find(rows []Row, team string) Row {
	for _, row := range rows {
		if row.Team == team {
			return row
		}
	}
	return Row{}
}

func TestTieBreakers(t *testing.T) {
	// equal points and difference: more goals scored ranks higher, then name
	rows := Compute([]Match{
		result(1, "Bees", "Ants", 3, 3),
		result(2, "Cats", "Dogs", 1, 1),
	})
	got := []string{rows[0].Team, rows[1].Team, rows[2].Team, rows[3].Team}
	assert.Equal(t, []string{"Ants", "Bees", "Cats", "Dogs"}, got)
}

func TestFormKeepsLastFive(t *testing.T) {
	var ms []Match
	for day := 1; day <= 7; day++ {
		hs, as := 0, 1
		if day > 5 {
			hs = 2
		}
		ms = append(ms, result(day, "Home", "Away", hs, as))
	}
	home := find(Compute(ms), "Home")
	assert.Equal(t, 7, home.Played)
	assert.Equal(t, []string{"L", "L", "L", "W", "W"}, home.Form)
}

func TestUnplayedResultsIgnored(t *testing.T) {
	m := result(1, "A", "B", 5, 0)
	m.Status = MatchPostponed
	rows := Compute([]Match{m})
	require.Len(t, rows, 2)
	assert.Zero(t, rows[0].Played)
	assert.Zero(t, rows[1].Points)
}
