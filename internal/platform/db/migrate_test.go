package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/healthmetrica/cdss/migrations"
)

func TestLoad_SortsAndSkips(t *testing.T) {
	src := fstest.MapFS{
		"010_late.sql":    {Data: []byte("SELECT 10;")},
		"002_second.sql":  {Data: []byte("SELECT 2;")},
		"001_first.sql":   {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("docs")},
		"draft.sql":       {Data: []byte("SELECT 0;")},
		"abc_named.sql":   {Data: []byte("SELECT 0;")},
		"sub/003_sub.sql": {Data: []byte("SELECT 3;")},
	}
	got, err := NewMigrator(nil, src).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(got), len(want))
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("migration %d version = %d, want %d", i, got[i].Version, v)
		}
	}
	if got[0].Name != "001_first.sql" || got[0].SQL != "SELECT 1;" {
		t.Errorf("first = %+v", got[0])
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	src := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, src).Load(); err == nil || !strings.Contains(err.Error(), "version 1") {
		t.Errorf("expected duplicate version error, got %v", err)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := pending(all, map[int]time.Time{1: time.Now(), 3: time.Now()})
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("pending = %+v", got)
	}
	if len(pending(all, nil)) != 3 {
		t.Error("nothing applied should leave every migration pending")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := NewMigrator(nil, migrations.FS).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) == 0 || got[0].Version != 1 {
		t.Fatalf("embedded migrations = %+v", got)
	}
	if !strings.Contains(got[0].SQL, "consultation_archive") {
		t.Error("first migration should create the archive table")
	}
}
