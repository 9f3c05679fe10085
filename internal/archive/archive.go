// Package archive keeps a local record of finished games.
package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const bucket = "games"

type PlayerResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Record struct {
	ID         string         `json:"id"`
	RoomID     string         `json:"roomId"`
	RoomName   string         `json:"roomName"`
	Rounds     int            `json:"rounds"`
	Players    []PlayerResult `json:"players"`
	Winners    []room.Winner  `json:"winners"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// RecordFromRoom snapshots a finished room.
func RecordFromRoom(r room.Room, at time.Time) Record {
	rec := Record{
		ID:         uuid.NewString(),
		RoomID:     r.ID,
		RoomName:   r.Name,
		Rounds:     r.RoundNumber,
		Winners:    r.Winners,
		FinishedAt: at.UTC(),
	}
	for _, p := range r.PlayerList() {
		rec.Players = append(rec.Players, PlayerResult{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return rec
}

type DB struct {
	db *bolt.DB
}

func Open(ctx context.Context, path string) (*DB, error) {
	logging.FromContext(ctx).Infow("opening game archive", "path", path)

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// key orders records by finish time; the id suffix keeps keys unique.
func key(rec Record) []byte {
	k := make([]byte, 8, 8+len(rec.ID))
	binary.BigEndian.PutUint64(k, uint64(rec.FinishedAt.UnixNano()))
	return append(k, rec.ID...)
}

func (d *DB) Add(rec Record) error {
	bytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key(rec), bytes)
	})
}

// Recent returns up to limit records, newest first.
func (d *DB) Recent(limit int) ([]Record, error) {
	var out []Record
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("json unmarshal error, %q", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return out, nil
}
