package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/sketch-mvp/internal/room"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayerStats struct {
	UserID      string    `json:"userId"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	TotalScore  int       `json:"totalScore"`
	BestScore   int       `json:"bestScore"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) InitForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO player_stats (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *StatsStore) Get(ctx context.Context, userID string) (PlayerStats, error) {
	var st PlayerStats
	err := s.db.QueryRow(ctx, `
		SELECT user_id, games_played, wins, total_score, best_score, updated_at
		FROM player_stats
		WHERE user_id=$1
	`, userID).Scan(&st.UserID, &st.GamesPlayed, &st.Wins, &st.TotalScore, &st.BestScore, &st.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// нет записи, значит нули
		return PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return PlayerStats{}, err
	}
	return st, nil
}

// RecordGame adds one finished game to every participant's totals.
func (s *StatsStore) RecordGame(ctx context.Context, r room.Room) error {
	winners := make(map[string]bool, len(r.Winners))
	for _, w := range r.Winners {
		winners[w.ID] = true
	}

	batch := &pgx.Batch{}
	for _, p := range r.PlayerList() {
		win := 0
		if winners[p.ID] {
			win = 1
		}
		batch.Queue(`
			INSERT INTO player_stats (user_id, games_played, wins, total_score, best_score, updated_at)
			VALUES ($1, 1, $2, $3, $3, now())
			ON CONFLICT (user_id) DO UPDATE SET
				games_played = player_stats.games_played + 1,
				wins         = player_stats.wins + EXCLUDED.wins,
				total_score  = player_stats.total_score + EXCLUDED.total_score,
				best_score   = GREATEST(player_stats.best_score, EXCLUDED.best_score),
				updated_at   = now()
		`, p.ID, win, p.Score)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record game %s: %w", r.ID, err)
	}
	return nil
}
