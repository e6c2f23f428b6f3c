package writer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/gateway-cache/internal/metrics"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	mu      sync.Mutex
	execs   []execCall
	execErr error
	row     fakeRow
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func (f *fakeDB) calls() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.execs...)
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

type fakeSource struct {
	data []byte
	err  error
}

func (s fakeSource) MarshalSnapshot() ([]byte, error) { return s.data, s.err }

func TestSnapshotWriter_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	w := NewSnapshotWriter(SnapshotConfig{}, fakeSource{}, db, nil, nil)

	if err := w.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	calls := db.calls()
	if len(calls) != 1 || !strings.Contains(calls[0].sql, "CREATE TABLE IF NOT EXISTS cache_snapshots") {
		t.Errorf("EnsureSchema() executed %+v, want create table", calls)
	}

	db.execErr = errors.New("permission denied")
	if err := w.EnsureSchema(context.Background()); err == nil {
		t.Error("EnsureSchema() expected error, got nil")
	}
}

func TestSnapshotWriter_WriteNow(t *testing.T) {
	tests := []struct {
		name       string
		source     fakeSource
		execErr    error
		wantErr    bool
		wantExecs  int
		wantWrites int64
	}{
		{"success", fakeSource{data: []byte(`{"guilds":[]}`)}, nil, false, 1, 1},
		{"marshal error", fakeSource{err: errors.New("boom")}, nil, true, 0, 0},
		{"db error", fakeSource{data: []byte(`{}`)}, errors.New("conn reset"), true, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{execErr: tt.execErr}
			m := metrics.New()
			w := NewSnapshotWriter(SnapshotConfig{Key: "gw-1"}, tt.source, db, m, nil)

			err := w.WriteNow(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("WriteNow() error = %v, wantErr %v", err, tt.wantErr)
			}

			calls := db.calls()
			if len(calls) != tt.wantExecs {
				t.Fatalf("execs = %d, want %d", len(calls), tt.wantExecs)
			}
			stats := w.Stats()
			if stats.Writes != tt.wantWrites {
				t.Errorf("Stats().Writes = %d, want %d", stats.Writes, tt.wantWrites)
			}
			if tt.wantErr && stats.Errors != 1 {
				t.Errorf("Stats().Errors = %d, want 1", stats.Errors)
			}
			if tt.wantExecs == 0 {
				return
			}

			args := calls[0].args
			if args[0] != "gw-1" {
				t.Errorf("key arg = %v, want gw-1", args[0])
			}
			if string(args[1].([]byte)) != string(tt.source.data) {
				t.Errorf("data arg = %s, want %s", args[1], tt.source.data)
			}
			if args[2] != len(tt.source.data) {
				t.Errorf("size arg = %v, want %d", args[2], len(tt.source.data))
			}
		})
	}
}

func TestSnapshotWriter_Lifecycle(t *testing.T) {
	db := &fakeDB{}
	cfg := SnapshotConfig{Key: "gw-1", Interval: 10 * time.Millisecond}
	w := NewSnapshotWriter(cfg, fakeSource{data: []byte(`{}`)}, db, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(db.calls()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("periodic writes = %d, want >= 2", len(db.calls()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	before := len(db.calls())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if after := len(db.calls()); after < before+1 {
		t.Errorf("writes after Stop = %d, want at least %d", after, before+1)
	}
}

func TestSnapshotWriter_StopWithoutStart(t *testing.T) {
	db := &fakeDB{}
	w := NewSnapshotWriter(SnapshotConfig{}, fakeSource{data: []byte(`{}`)}, db, nil, nil)

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(db.calls()) != 1 {
		t.Errorf("execs = %d, want the final write", len(db.calls()))
	}
}

func TestLoadSnapshot(t *testing.T) {
	db := &fakeDB{row: fakeRow{data: []byte(`{"guilds":[{"id":"10","name":"home"}],"future_field":1}`)}}

	st, err := LoadSnapshot(context.Background(), db, "gw-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(st.Guilds) != 1 || st.Guilds[0].Name != "home" {
		t.Errorf("Guilds = %+v, want one guild named home", st.Guilds)
	}
}

func TestLoadSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		row     fakeRow
		wantErr error
	}{
		{"missing", fakeRow{err: pgx.ErrNoRows}, ErrNoSnapshot},
		{"query failure", fakeRow{err: errors.New("timeout")}, nil},
		{"corrupt", fakeRow{data: []byte(`{"guilds":`)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSnapshot(context.Background(), &fakeDB{row: tt.row}, "gw-1")
			if err == nil {
				t.Fatal("LoadSnapshot() expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadSnapshot() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && errors.Is(err, ErrNoSnapshot) {
				t.Errorf("LoadSnapshot() error = %v, should not be ErrNoSnapshot", err)
			}
		})
	}
}
