package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dataghost-gateway/internal/journal"
	"dataghost-gateway/internal/shared/config"
)

func TestBuildWithoutDatabaseUsesMemoryJournal(t *testing.T) {
	app, err := Build(config.Config{
		Env:           "dev",
		LocalStoreDir: t.TempDir(),
		APIBaseURL:    "http://127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil {
		t.Fatalf("expected no database")
	}
	if _, ok := app.Journal.(*journal.MemoryRepo); !ok {
		t.Fatalf("expected memory journal, got %T", app.Journal)
	}
	if app.Client.BaseURL() != "http://127.0.0.1:1" {
		t.Fatalf("unexpected base url %q", app.Client.BaseURL())
	}

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", w.Code)
	}
}

func TestBuildFailsOutsideDevWhenDatabaseUnreachable(t *testing.T) {
	_, err := Build(config.Config{
		Env:         "prod",
		DatabaseURL: "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}
