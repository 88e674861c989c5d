// Package archive persists observations to a sqlite database for offline
// reporting. The analytics core never depends on it; the CLI feeds it as an
// audit trail and export surface. Schema lives in embedded migrations.
package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Archive is a sqlite-backed observation log.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if necessary) the archive database at path and runs
// any pending migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Record appends one observation with its environmental context.
func (a *Archive) Record(obs behavior.Observation, env behavior.Environment) error {
	_, err := a.db.Exec(`
		INSERT INTO observations (
			species, behavior, confidence, duration_seconds,
			activity_level, stress_level, animal_count,
			repeated, grouped, human_interaction,
			temperature_c, humidity_pct, light_level, ts_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.Species, obs.Behavior.String(), obs.Confidence, obs.DurationSeconds,
		obs.ActivityLevel, obs.StressLevel, obs.AnimalCount,
		obs.Repeated, obs.Group, obs.HumanInteraction,
		env.TemperatureC, env.HumidityPct, env.LightLevel, obs.TimestampUnix,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// RecordBatch appends observations in one transaction.
func (a *Archive) RecordBatch(obs []behavior.Observation, envs []behavior.Environment) error {
	if len(obs) != len(envs) {
		return fmt.Errorf("observation/environment length mismatch: %d vs %d", len(obs), len(envs))
	}
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO observations (
			species, behavior, confidence, duration_seconds,
			activity_level, stress_level, animal_count,
			repeated, grouped, human_interaction,
			temperature_c, humidity_pct, light_level, ts_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		if _, err := stmt.Exec(
			o.Species, o.Behavior.String(), o.Confidence, o.DurationSeconds,
			o.ActivityLevel, o.StressLevel, o.AnimalCount,
			o.Repeated, o.Group, o.HumanInteraction,
			envs[i].TemperatureC, envs[i].HumidityPct, envs[i].LightLevel, o.TimestampUnix,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of archived observations.
func (a *Archive) Count() (int, error) {
	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// HourlyActivity returns mean activity level and observation count per hour
// of day, for the chart tools.
func (a *Archive) HourlyActivity() ([24]float64, [24]int, error) {
	var activity [24]float64
	var counts [24]int

	rows, err := a.db.Query(`
		SELECT CAST(strftime('%H', ts_unix, 'unixepoch') AS INTEGER) AS hour,
		       AVG(activity_level), COUNT(*)
		FROM observations GROUP BY hour`)
	if err != nil {
		return activity, counts, fmt.Errorf("query hourly activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, n int
		var mean float64
		if err := rows.Scan(&hour, &mean, &n); err != nil {
			return activity, counts, fmt.Errorf("scan hourly activity: %w", err)
		}
		if hour >= 0 && hour < 24 {
			activity[hour] = mean
			counts[hour] = n
		}
	}
	return activity, counts, rows.Err()
}

// MonthlyActivity returns mean activity level and observation count per
// month (index 0 = January).
func (a *Archive) MonthlyActivity() ([12]float64, [12]int, error) {
	var activity [12]float64
	var counts [12]int

	rows, err := a.db.Query(`
		SELECT CAST(strftime('%m', ts_unix, 'unixepoch') AS INTEGER) AS month,
		       AVG(activity_level), COUNT(*)
		FROM observations GROUP BY month`)
	if err != nil {
		return activity, counts, fmt.Errorf("query monthly activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var month, n int
		var mean float64
		if err := rows.Scan(&month, &mean, &n); err != nil {
			return activity, counts, fmt.Errorf("scan monthly activity: %w", err)
		}
		if month >= 1 && month <= 12 {
			activity[month-1] = mean
			counts[month-1] = n
		}
	}
	return activity, counts, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
