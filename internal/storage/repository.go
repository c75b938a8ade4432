package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("record not found")

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	db *DB
}

// NewBaseRepository creates a new base repository with the given database connection.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Now returns the current time in UTC for database timestamps.
func (r *BaseRepository) Now() time.Time {
	return time.Now().UTC()
}

// GenerateID creates a new random UUID for use as a primary key.
func GenerateID() string {
	return uuid.NewString()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Repositories bundles one repository per table over a shared connection.
type Repositories struct {
	Dogs       *DogRepository
	Boardings  *BoardingRepository
	SyncLogs   *SyncLogRepository
	Settings   *SyncSettingsRepository
	CronHealth *CronHealthRepository
}

// NewRepositories creates every repository over db.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Dogs:       NewDogRepository(db),
		Boardings:  NewBoardingRepository(db),
		SyncLogs:   NewSyncLogRepository(db),
		Settings:   NewSyncSettingsRepository(db),
		CronHealth: NewCronHealthRepository(db),
	}
}
