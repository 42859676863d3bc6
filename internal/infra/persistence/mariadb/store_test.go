package mariadb

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"ontologycore/internal/catalog"
	"ontologycore/internal/infra/persistence/sqltest"
	"ontologycore/internal/lookup"
	"ontologycore/pkg/domain"
)

func TestConfigForcesUTCParsing(t *testing.T) {
	cfg, err := Config("user:pw@tcp(db:3306)/catalog?charset=utf8mb4")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if !cfg.ParseTime || cfg.Loc != time.UTC || cfg.Params["time_zone"] != "'+00:00'" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.DBName != "catalog" || cfg.Addr != "db:3306" {
		t.Fatalf("dsn not parsed: %+v", cfg)
	}
	if _, err := Config("::not a dsn"); err == nil {
		t.Fatalf("expected parse error")
	}
	def, err := Config("")
	if err != nil || def.DBName != "ontologycore" {
		t.Fatalf("expected default dsn, got %+v %v", def, err)
	}
}

func TestOpenAppliesSchemaWithFulltextIndex(t *testing.T) {
	db, conn := sqltest.NewDB()
	var seen *mysql.Config
	restore := OverrideOpenDB(func(cfg *mysql.Config) (*sql.DB, error) {
		seen = cfg
		return db, nil
	})
	defer restore()
	cat, err := Open(context.Background(), "u@tcp(h:3306)/d")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = cat.Close() }()
	if seen == nil || !seen.ParseTime {
		t.Fatalf("expected normalized config")
	}
	var fulltext, unique bool
	for _, stmt := range conn.Execs() {
		if strings.Contains(stmt.Query, "CREATE UNIQUE INDEX IF NOT EXISTS uq_ontology_classes_curie") {
			unique = true
		}
		if strings.Contains(stmt.Query, "FULLTEXT KEY ft_ontology_classes_label (label)") {
			fulltext = true
		}
	}
	if !fulltext || !unique {
		t.Fatalf("expected FULLTEXT index and class key in schema, got %v/%v", fulltext, unique)
	}
}

func TestOpenPingFailure(t *testing.T) {
	db, conn := sqltest.NewDB()
	conn.FailPing = true
	restore := OverrideOpenDB(func(*mysql.Config) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := Open(context.Background(), "u@tcp(h:3306)/d"); err == nil || !strings.Contains(err.Error(), "ping mariadb") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

// TestMariaDBIntegration runs against a real server when
// ONTOLOGYCORE_TEST_MARIADB_DSN is set.
func TestMariaDBIntegration(t *testing.T) {
	dsn := os.Getenv("ONTOLOGYCORE_TEST_MARIADB_DSN")
	if dsn == "" {
		t.Skip("ONTOLOGYCORE_TEST_MARIADB_DSN not set")
	}
	ctx := context.Background()
	cat, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = cat.Close() }()
	for _, stmt := range []string{"DELETE FROM measurement_samples", "DELETE FROM measurements", "DELETE FROM ontology_classes"} {
		if _, err := cat.DB.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	if err := cat.Measurements.InsertMeasurement(ctx, domain.Measurement{
		Code:         "NGS1",
		RegisteredAt: time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC),
		Device:       domain.Reference{Label: "NovaSeq 6000"},
	}, []string{"S1", "S2"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	l := lookup.New(catalog.MeasurementEntity(), lookup.Store[domain.Measurement](cat.Measurements))
	f := domain.NewFilter("2024-05-02 00:30", "S1", "S2").AtClientTimeOffset(2 * 3_600_000)
	page, err := l.Lookup(ctx, f, 0, 10)
	if err != nil || page.Len() != 1 {
		t.Fatalf("expected one distinct measurement, got %+v %v", page.Items, err)
	}
}
