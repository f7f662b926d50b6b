package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thywilljoshua/exbank/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(&app{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsAgainstEmptyDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "bank.db")

	out, err := run(t, "init", "--db", db)
	if err != nil || !strings.Contains(out, "database ready") {
		t.Fatalf("init: %q, %v", out, err)
	}

	out, err = run(t, "exercises", "--db", db, "--status", "correct", "--tag", "limits")
	if err != nil {
		t.Fatalf("exercises: %v", err)
	}
	var list []any
	if err := json.Unmarshal([]byte(out), &list); err != nil || len(list) != 0 {
		t.Fatalf("exercises output %q: %v", out, err)
	}

	if _, err := run(t, "exercises", "--db", db, "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}

	_, err = run(t, "attempts", "--db", db, "book", "1", "1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("attempts: %v, want ErrNotFound", err)
	}

	if _, err := run(t, "reset", "--db", db); err == nil {
		t.Fatal("reset without --yes must refuse")
	}
	if out, err := run(t, "reset", "--db", db, "--yes"); err != nil || !strings.Contains(out, "database reset") {
		t.Fatalf("reset: %q, %v", out, err)
	}
}

func TestParseKey(t *testing.T) {
	k, err := parseKey("book", "12", "3")
	if err != nil || k.Reference != "book" || k.Page != 12 || k.Number != 3 {
		t.Fatalf("parseKey = %+v, %v", k, err)
	}
	for _, bad := range [][2]string{{"0", "1"}, {"x", "1"}, {"2", "y"}} {
		if _, err := parseKey("book", bad[0], bad[1]); err == nil {
			t.Errorf("parseKey(%q, %q) accepted", bad[0], bad[1])
		}
	}
}
