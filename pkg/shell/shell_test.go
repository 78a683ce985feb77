package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/config"
	"github.com/arcuru/eidetica/pkg/eidetica"
	"github.com/arcuru/eidetica/pkg/storage"
)

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	backend := storage.NewMemoryBackend(nil)
	ks := auth.NewKeystore()
	db := eidetica.New(backend, ks)
	cfg := config.Default()
	cfg.KeyName = "owner"
	var out bytes.Buffer
	return New(db, cfg, strings.NewReader(""), &out), &out
}

func TestHelpListsCommands(t *testing.T) {
	sh, out := newTestShell(t)
	sh.dispatch("help")
	if !strings.Contains(out.String(), "create-tree") {
		t.Fatalf("expected help to list create-tree, got %q", out.String())
	}
}

func TestCreateTreeThenListTrees(t *testing.T) {
	sh, out := newTestShell(t)
	sh.dispatch("create-tree widgets")
	if !strings.Contains(out.String(), "created tree widgets") {
		t.Fatalf("expected creation confirmation, got %q", out.String())
	}

	out.Reset()
	sh.dispatch("list-trees")
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("expected a root id listed")
	}
}

func TestGetEntryUnknownIDReportsKind(t *testing.T) {
	sh, out := newTestShell(t)
	sh.dispatch("get-entry nonexistent")
	if !strings.Contains(out.String(), "NotFound") {
		t.Fatalf("expected NotFound in output, got %q", out.String())
	}
}

func TestExitNoSaveStopsLoopWithoutSaving(t *testing.T) {
	sh, _ := newTestShell(t)
	sh.cfg.DatabaseFile = filepath.Join(t.TempDir(), "db.json")
	sh.dispatch("exit-no-save")
	if !sh.quitting {
		t.Fatalf("expected shell to be quitting after exit-no-save")
	}
	if _, err := os.Stat(sh.cfg.DatabaseFile); !os.IsNotExist(err) {
		t.Fatalf("expected no database file after exit-no-save, stat err=%v", err)
	}
}
