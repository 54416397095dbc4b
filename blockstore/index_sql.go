/*
Copyright (C) 2023  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package blockstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// sqlIndex is an Index backend that keeps the object-number -> (offset,
// size) mapping in a SQL table instead of the default append-only log,
// for deployments that already run the object store's host alongside a
// relational database they want to administer the index through.
type sqlIndex struct {
	db      *sql.DB
	dialect string // "mysql" or "postgres": the two dialects disagree on upsert syntax and placeholders
}

const sqlIndexSchema = `CREATE TABLE IF NOT EXISTS coldc_index (
	objnum BIGINT PRIMARY KEY,
	offset BIGINT NOT NULL,
	size INTEGER NOT NULL
)`

// OpenMySQLIndex connects to a MySQL server and uses it as the external
// index backend, mirroring the teacher's openMySQL connection-string
// assembly and timeout/pool conventions.
func OpenMySQLIndex(ctx context.Context, host string, port int, user, password, database string) (Index, error) {
	addr := host + ":" + strconv.Itoa(port)
	dsn := user
	if password != "" {
		dsn += ":" + password
	}
	dsn += "@tcp(" + addr + ")/" + database + "?parseTime=true&multiStatements=true&interpolateParams=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("blockstore: opening mysql index: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blockstore: pinging mysql index: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlIndexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blockstore: preparing mysql index schema: %w", err)
	}
	return &sqlIndex{db: db, dialect: "mysql"}, nil
}

// OpenPostgresIndex is OpenMySQLIndex's lib/pq-backed counterpart.
func OpenPostgresIndex(ctx context.Context, dsn string) (Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("blockstore: opening postgres index: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blockstore: pinging postgres index: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlIndexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blockstore: preparing postgres index schema: %w", err)
	}
	return &sqlIndex{db: db, dialect: "postgres"}, nil
}

// ph renders the n-th (1-based) placeholder for the active dialect.
func (s *sqlIndex) ph(n int) string {
	if s.dialect == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *sqlIndex) Retrieve(objnum int) (Location, bool) {
	var loc Location
	row := s.db.QueryRow(`SELECT offset, size FROM coldc_index WHERE objnum = `+s.ph(1), objnum)
	if err := row.Scan(&loc.Offset, &loc.Size); err != nil {
		return Location{}, false
	}
	return loc, true
}

func (s *sqlIndex) Store(objnum int, loc Location) {
	if s.dialect == "postgres" {
		s.db.Exec(`INSERT INTO coldc_index (objnum, offset, size) VALUES ($1, $2, $3)
			ON CONFLICT (objnum) DO UPDATE SET offset = EXCLUDED.offset, size = EXCLUDED.size`,
			objnum, loc.Offset, loc.Size)
		return
	}
	s.db.Exec(`REPLACE INTO coldc_index (objnum, offset, size) VALUES (?, ?, ?)`, objnum, loc.Offset, loc.Size)
}

func (s *sqlIndex) Remove(objnum int) {
	s.db.Exec(`DELETE FROM coldc_index WHERE objnum = `+s.ph(1), objnum)
}

func (s *sqlIndex) First() (int, bool) {
	var objnum int
	row := s.db.QueryRow(`SELECT objnum FROM coldc_index ORDER BY objnum ASC LIMIT 1`)
	if err := row.Scan(&objnum); err != nil {
		return 0, false
	}
	return objnum, true
}

func (s *sqlIndex) Next(objnum int) (int, bool) {
	var next int
	row := s.db.QueryRow(`SELECT objnum FROM coldc_index WHERE objnum > `+s.ph(1)+` ORDER BY objnum ASC LIMIT 1`, objnum)
	if err := row.Scan(&next); err != nil {
		return 0, false
	}
	return next, true
}

func (s *sqlIndex) Sync() error { return nil }
func (s *sqlIndex) Close() error { return s.db.Close() }
