package trace

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

const defaultBatchSize = 10000

// SQLiteWriter buffers trace records and writes them in batches to a SQLite
// database with a packets and a stages table.
//
// Write errors cannot be returned from the Recorder methods; the first one is
// kept and reported by Flush and Close.
type SQLiteWriter struct {
	db         *sql.DB
	packetStmt *sql.Stmt
	stageStmt  *sql.Stmt

	path      string
	batchSize int
	packets   []PacketRecord
	stages    []StageRecord
	err       error
	closed    bool
}

// DefaultTracePath returns a fresh database file name in the working directory.
func DefaultTracePath() string {
	return "netsim_trace_" + xid.New().String() + ".sqlite3"
}

// NewSQLiteWriter creates the database at path (DefaultTracePath if empty).
// An existing file is never overwritten. Buffered records are flushed when
// the process exits through atexit.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if path == "" {
		path = DefaultTracePath()
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("trace database %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database %s: %w", path, err)
	}
	w := &SQLiteWriter{db: db, path: path, batchSize: defaultBatchSize}
	if err := w.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := w.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	atexit.Register(func() {
		if err := w.Close(); err != nil {
			logrus.Warnf("trace database %s: %v", w.path, err)
		}
	})
	logrus.Infof("Trace is collected in database %s", path)
	return w, nil
}

// Path returns the database file name.
func (w *SQLiteWriter) Path() string {
	return w.path
}

func (w *SQLiteWriter) createTables() error {
	stmts := []string{
		`CREATE TABLE packets (
			packet_id  TEXT,
			host       TEXT,
			src_task   TEXT,
			src_vm     TEXT,
			dst_task   TEXT,
			dst_vm     TEXT,
			bytes      INTEGER,
			route      TEXT,
			clock      INTEGER,
			delay      INTEGER,
			share_mbps REAL
		)`,
		`CREATE TABLE stages (
			task_id    TEXT,
			vm         TEXT,
			stage      INTEGER,
			kind       TEXT,
			start_tick INTEGER,
			end_tick   INTEGER
		)`,
		`CREATE INDEX packets_host ON packets (host, clock)`,
	}
	for _, s := range stmts {
		if _, err := w.db.Exec(s); err != nil {
			return fmt.Errorf("create trace tables: %w", err)
		}
	}
	return nil
}

func (w *SQLiteWriter) prepareStatements() error {
	var err error
	w.packetStmt, err = w.db.Prepare(`INSERT INTO packets VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare packet insert: %w", err)
	}
	w.stageStmt, err = w.db.Prepare(`INSERT INTO stages VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stage insert: %w", err)
	}
	return nil
}

// RecordPacket buffers a packet record.
func (w *SQLiteWriter) RecordPacket(r PacketRecord) {
	if w.closed {
		return
	}
	w.packets = append(w.packets, r)
	if len(w.packets) >= w.batchSize {
		w.keep(w.Flush())
	}
}

// RecordStage buffers a stage record.
func (w *SQLiteWriter) RecordStage(r StageRecord) {
	if w.closed {
		return
	}
	w.stages = append(w.stages, r)
	if len(w.stages) >= w.batchSize {
		w.keep(w.Flush())
	}
}

func (w *SQLiteWriter) keep(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

// Flush writes every buffered record in one transaction.
func (w *SQLiteWriter) Flush() error {
	if w.closed {
		return w.err
	}
	if len(w.packets) == 0 && len(w.stages) == 0 {
		return w.err
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin trace batch: %w", err)
	}
	for _, p := range w.packets {
		_, err := tx.Stmt(w.packetStmt).Exec(p.PacketID, p.Host, p.SrcTask, p.SrcVM, p.DstTask, p.DstVM,
			p.Bytes, string(p.Route), p.Clock, p.Delay, p.ShareMbps)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert packet %s: %w", p.PacketID, err)
		}
	}
	for _, s := range w.stages {
		_, err := tx.Stmt(w.stageStmt).Exec(s.TaskID, s.VM, s.Stage, s.Kind, s.Start, s.End)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert stage %s/%d: %w", s.TaskID, s.Stage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace batch: %w", err)
	}

	w.packets = nil
	w.stages = nil
	return w.err
}

// Close flushes and closes the database. Safe to call more than once.
func (w *SQLiteWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.keep(w.Flush())
	w.closed = true
	w.keep(w.packetStmt.Close())
	w.keep(w.stageStmt.Close())
	w.keep(w.db.Close())
	return w.err
}
