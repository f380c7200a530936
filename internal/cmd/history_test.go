package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/yarascope/internal/history"
)

// seedHistory writes two scans with fixed IDs so prefix lookups are testable
func seedHistory(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scans.db")

	store, err := history.NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	first := &history.ScanRecord{
		ID:       "11111111-aaaa-4bbb-8ccc-000000000001",
		RuleFile: "rules.yar",
		Root:     "/data/samples",
		Scanned:  12,
		Matched:  2,
		Errors:   1,
		Duration: 1500 * time.Millisecond,
		ExitCode: 1,
	}
	hits := []history.HitRecord{
		{
			Path:     "/data/samples/a.bin",
			Filename: "a.bin",
			MD5:      "9e107d9d372bb6826bd81d3542a419d6",
			SHA1:     "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12",
			SHA256:   "d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592",
			Rules:    []string{"marker_rule"},
			Tags:     []string{"demo"},
		},
	}
	if err := store.RecordScan(ctx, first, hits); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	second := &history.ScanRecord{
		ID:       "22222222-aaaa-4bbb-8ccc-000000000002",
		RuleFile: "other.yar",
		Root:     "/data/clean",
		Scanned:  5,
		ExitCode: 0,
	}
	if err := store.RecordScan(ctx, second, nil); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	return dbPath
}

func runHistoryCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	if stdin != "" {
		root.SetIn(strings.NewReader(stdin))
	}
	root.SetArgs(append([]string{"history"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestHistoryListCommand(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "", "list", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{
		"=== Scan History ===",
		"11111111",
		"22222222",
		"rules.yar -> /data/samples",
		"12 scanned, 2 matched, 1 errors",
		"2 scan(s)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q, got:\n%s", want, output)
		}
	}
}

func TestHistoryListCommandLimit(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "", "list", "--limit", "1", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "1 scan(s)") {
		t.Errorf("Output missing limited count, got:\n%s", output)
	}
}

func TestHistoryListCommandNoDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	output, err := runHistoryCommand(t, "", "list", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "No history database found at:") {
		t.Errorf("Output missing no-database notice, got:\n%s", output)
	}
}

func TestHistoryListCommandEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scans.db")
	store, err := history.NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history store: %v", err)
	}
	store.Close()

	output, err := runHistoryCommand(t, "", "list", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "No scans recorded.") {
		t.Errorf("Output missing empty notice, got:\n%s", output)
	}
}

func TestHistoryShowCommand(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "", "show", "11111111-aaaa-4bbb-8ccc-000000000001", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{
		"=== Scan 11111111-aaaa-4bbb-8ccc-000000000001 ===",
		"Rules: rules.yar",
		"Root: /data/samples",
		"Files scanned: 12",
		"Matched: 2",
		"Exit code: 1",
		"a.bin (/data/samples/a.bin)",
		"md5: 9e107d9d372bb6826bd81d3542a419d6",
		"rules: marker_rule",
		"tags: demo",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q, got:\n%s", want, output)
		}
	}
}

func TestHistoryShowCommandPrefix(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "", "show", "22222222", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "Rules: other.yar") {
		t.Errorf("Prefix lookup should resolve the scan, got:\n%s", output)
	}
	if !strings.Contains(output, "No matched files recorded.") {
		t.Errorf("Output missing hitless notice, got:\n%s", output)
	}
}

func TestHistoryShowCommandNotFound(t *testing.T) {
	dbPath := seedHistory(t)

	_, err := runHistoryCommand(t, "", "show", "zzz", "--db-path", dbPath)
	if err == nil || !strings.Contains(err.Error(), "scan not found") {
		t.Fatalf("Execute() error = %v, want scan not found", err)
	}
}

func TestHistoryClearCommandYes(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "", "clear", "--yes", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "Deleted 2 records.") {
		t.Errorf("Output missing deletion count, got:\n%s", output)
	}

	output, err = runHistoryCommand(t, "", "list", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "No scans recorded.") {
		t.Errorf("History should be empty after clear, got:\n%s", output)
	}
}

func TestHistoryClearCommandDeclined(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "n\n", "clear", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "WARNING") {
		t.Errorf("Output missing warning, got:\n%s", output)
	}
	if !strings.Contains(output, "Operation cancelled.") {
		t.Errorf("Output missing cancellation notice, got:\n%s", output)
	}

	output, err = runHistoryCommand(t, "", "list", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "2 scan(s)") {
		t.Errorf("Declined clear should keep records, got:\n%s", output)
	}
}

func TestHistoryClearCommandConfirmed(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := runHistoryCommand(t, "y\n", "clear", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(output, "Deleted 2 records.") {
		t.Errorf("Output missing deletion count, got:\n%s", output)
	}
}

func TestConfirmAction(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		buf := new(bytes.Buffer)
		got := confirmAction(buf, strings.NewReader(tt.input))
		if got != tt.want {
			t.Errorf("confirmAction(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(buf.String(), "Continue? [y/N]:") {
			t.Errorf("Prompt missing, got: %s", buf.String())
		}
	}
}
