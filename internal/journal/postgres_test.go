package journal

import (
	"context"
	"testing"

	"github.com/roach88/offlinewallet/internal/testutil"
)

// createPostgresJournal connects to the database named by
// OFFLINEWALLET_TEST_PG_DSN. Tests using it share that database, so they
// scope their tx ids with uniqueTxID.
func createPostgresJournal(t *testing.T, dsn string, clock *testutil.ManualClock) *PostgresJournal {
	t.Helper()
	j, err := OpenPostgres(context.Background(), dsn, WithClock(clock))
	if err != nil {
		t.Fatalf("OpenPostgres() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenPostgres_BadDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://%zz")
	if err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}

func TestListQuery_Placeholders(t *testing.T) {
	tests := []struct {
		name        string
		filter      Filter
		placeholder string
		wantSuffix  string
		wantArgs    int
	}{
		{"sqlite no filter", Filter{}, "?", " ORDER BY created_at ASC, tx_id ASC", 0},
		{"sqlite state and limit", Filter{State: "synced", Limit: 5}, "?", " WHERE state = ? ORDER BY created_at ASC, tx_id ASC LIMIT ?", 2},
		{"postgres limit only", Filter{Limit: 5}, "$", " ORDER BY created_at ASC, tx_id ASC LIMIT $1", 1},
		{"postgres state and limit", Filter{State: "synced", Limit: 5}, "$", " WHERE state = $1 ORDER BY created_at ASC, tx_id ASC LIMIT $2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := listQuery(tt.filter, tt.placeholder)
			prefix := `SELECT ` + transactionColumns + ` FROM transactions`
			if query != prefix+tt.wantSuffix {
				t.Errorf("query = %q, want suffix %q", query[len(prefix):], tt.wantSuffix)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
