package standings

import (
	"sort"
	"strings"
)

const (
	pointsWin  = 3
	pointsDraw = 1
	formLength = 5
)

type Row struct {
	Position       int      `json:"position"`
	Team           string   `json:"team"`
	Played         int      `json:"played"`
	Won            int      `json:"won"`
	Drawn          int      `json:"drawn"`
	Lost           int      `json:"lost"`
	GoalsFor       int      `json:"goalsFor"`
	GoalsAgainst   int      `json:"goalsAgainst"`
	GoalDifference int      `json:"goalDifference"`
	Points         int      `json:"points"`
	Form           []string `json:"form"`
}

func (r *Row) record(scored, conceded int) {
	r.Played++
	r.GoalsFor += scored
	r.GoalsAgainst += conceded
	r.GoalDifference = r.GoalsFor - r.GoalsAgainst
	result := "D"
	switch {
	case scored > conceded:
		r.Won++
		r.Points += pointsWin
		result = "W"
	case scored < conceded:
		r.Lost++
		result = "L"
	default:
		r.Drawn++
		r.Points += pointsDraw
	}
	r.Form = append(r.Form, result)
	if len(r.Form) > formLength {
		r.Form = r.Form[len(r.Form)-formLength:]
	}
}

// Compute builds a league table from the matches of one season and division.
// Teams that only have fixtures are listed with zeros.
func Compute(matches []Match) []Row {
	ordered := append([]Match(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ScheduledAt.Before(ordered[j].ScheduledAt) })

	rows := map[string]*Row{}
	row := func(team string) *Row {
		r, ok := rows[team]
		if !ok {
			r = &Row{Team: team, Form: []string{}}
			rows[team] = r
		}
		return r
	}
	for i := range ordered {
		m := &ordered[i]
		home, away := row(m.HomeTeam), row(m.AwayTeam)
		if !m.Played() {
			continue
		}
		home.record(*m.HomeScore, *m.AwayScore)
		away.record(*m.AwayScore, *m.HomeScore)
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return strings.ToLower(a.Team) < strings.ToLower(b.Team)
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}
