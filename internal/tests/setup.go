// Package tests holds the Postgres-backed integration tests. They skip unless
// DATABASE_URL points at a disposable database.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
)

// TruncateAuthTables empties both registration tables for a clean test state.
func TruncateAuthTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE pending_signups, accounts")
	if err != nil {
		return fmt.Errorf("truncate auth tables: %w", err)
	}
	return nil
}

var otpPattern = regexp.MustCompile(`\b[0-9]{6}\b`)

// CapturingNotifier keeps the last code mailed to each address.
type CapturingNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewCapturingNotifier() *CapturingNotifier {
	return &CapturingNotifier{codes: make(map[string]string)}
}

func (n *CapturingNotifier) Send(_ context.Context, to, _, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[to] = otpPattern.FindString(body)
	return nil
}

// LastCode returns the most recent code sent to email, or "".
func (n *CapturingNotifier) LastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}
