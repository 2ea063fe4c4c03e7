package standings

import (
	"context"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/google/uuid"
)

type MatchInput struct {
	Season      string      `json:"season" binding:"required,max=20"`
	Division    string      `json:"division" binding:"required,max=60"`
	HomeTeam    string      `json:"homeTeam" binding:"required,max=100"`
	AwayTeam    string      `json:"awayTeam" binding:"required,max=100"`
	ScheduledAt time.Time   `json:"scheduledAt" binding:"required"`
	Venue       string      `json:"venue" binding:"max=200"`
	Status      MatchStatus `json:"status"`
}

type ResultInput struct {
	HomeScore *int `json:"homeScore" binding:"required,min=0"`
	AwayScore *int `json:"awayScore" binding:"required,min=0"`
}

// Table is one computed league table.
type Table struct {
	Season   string `json:"season"`
	Division string `json:"division"`
	Rows     []Row  `json:"rows"`
}

type Service struct {
	repo  Repository
	cache Cache
	now   func() time.Time
}

func NewService(repo Repository, cache Cache) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{repo: repo, cache: cache, now: time.Now}
}

func apply(m *Match, in MatchInput) error {
	m.Season = strings.TrimSpace(in.Season)
	m.Division = strings.TrimSpace(in.Division)
	m.HomeTeam = strings.TrimSpace(in.HomeTeam)
	m.AwayTeam = strings.TrimSpace(in.AwayTeam)
	m.Venue = strings.TrimSpace(in.Venue)
	if m.Season == "" || m.Division == "" || m.HomeTeam == "" || m.AwayTeam == "" {
		return apperr.Invalid("season, division and both teams are required")
	}
	if strings.EqualFold(m.HomeTeam, m.AwayTeam) {
		return apperr.Invalid("a team cannot play itself")
	}
	if in.ScheduledAt.IsZero() {
		return apperr.Invalid("scheduledAt is required")
	}
	m.ScheduledAt = in.ScheduledAt.UTC()
	if in.Status != "" {
		if !in.Status.Valid() {
			return apperr.Invalid("unknown status %q", in.Status)
		}
		m.Status = in.Status
	}
	if m.Status == "" {
		m.Status = MatchScheduled
	}
	if m.Status == MatchCompleted && (m.HomeScore == nil || m.AwayScore == nil) {
		return apperr.Invalid("record a result to complete a match")
	}
	if m.Status != MatchCompleted {
		m.HomeScore, m.AwayScore = nil, nil
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, season, division string) {
	if err := s.cache.Invalidate(ctx, season, division); err != nil {
		logger.Warnf("standings: invalidate %s/%s: %v", season, division, err)
	}
}

func (s *Service) CreateMatch(ctx context.Context, in MatchInput) (*Match, error) {
	now := s.now().UTC()
	m := &Match{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := apply(m, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.invalidate(ctx, m.Season, m.Division)
	return m, nil
}

func (s *Service) GetMatch(ctx context.Context, id string) (*Match, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateMatch(ctx context.Context, id string, in MatchInput) (*Match, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prevSeason, prevDivision := m.Season, m.Division
	if err := apply(m, in); err != nil {
		return nil, err
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.invalidate(ctx, m.Season, m.Division)
	if prevSeason != m.Season || prevDivision != m.Division {
		s.invalidate(ctx, prevSeason, prevDivision)
	}
	return m, nil
}

func (s *Service) DeleteMatch(ctx context.Context, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, m.Season, m.Division)
	return nil
}

// RecordResult stores the score and completes the match.
func (s *Service) RecordResult(ctx context.Context, id string, in ResultInput) (*Match, error) {
	if in.HomeScore == nil || in.AwayScore == nil {
		return nil, apperr.Invalid("both scores are required")
	}
	if *in.HomeScore < 0 || *in.AwayScore < 0 {
		return nil, apperr.Invalid("scores cannot be negative")
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == MatchCancelled {
		return nil, apperr.Conflict("match is cancelled")
	}
	home, away := *in.HomeScore, *in.AwayScore
	m.HomeScore, m.AwayScore = &home, &away
	m.Status = MatchCompleted
	m.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.invalidate(ctx, m.Season, m.Division)
	return m, nil
}

func (s *Service) ListMatches(ctx context.Context, q MatchQuery) (models.List[Match], error) {
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Match]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Match]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

func (s *Service) Seasons(ctx context.Context) ([]SeasonDivision, error) {
	out, err := s.repo.Seasons(ctx)
	if out == nil && err == nil {
		out = []SeasonDivision{}
	}
	return out, err
}

// Table computes a league table. An empty season picks the newest one, and an
// empty division the first division of that season.
func (s *Service) Table(ctx context.Context, season, division string) (*Table, error) {
	season, division = strings.TrimSpace(season), strings.TrimSpace(division)
	if season == "" || division == "" {
		all, err := s.repo.Seasons(ctx)
		if err != nil {
			return nil, err
		}
		found := false
		for _, sd := range all {
			if (season == "" || sd.Season == season) && (division == "" || sd.Division == division) {
				season, division, found = sd.Season, sd.Division, true
				break
			}
		}
		if !found {
			return nil, apperr.NotFound("table")
		}
	}

	rows, ok, err := s.cache.Get(ctx, season, division)
	if err != nil {
		logger.Warnf("standings: cache read %s/%s: %v", season, division, err)
	}
	if ok {
		return &Table{Season: season, Division: division, Rows: rows}, nil
	}

	matches, err := s.repo.Table(ctx, season, division)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.NotFound("table")
	}
	rows = Compute(matches)
	if err := s.cache.Set(ctx, season, division, rows); err != nil {
		logger.Warnf("standings: cache write %s/%s: %v", season, division, err)
	}
	return &Table{Season: season, Division: division, Rows: rows}, nil
}
