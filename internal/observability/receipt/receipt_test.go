package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/policyforge/wspolicy/internal/observability"
)

func TestWriterOverwrite_WritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.json")

	w, err := NewWriter(path, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "test-op-id-123",
		TsStart:       "2024-01-01T00:00:00Z",
		TsEnd:         "2024-01-01T00:01:00Z",
		Command:       "wspolicy normalize",
		Args:          []string{"--format", "json", "policy.yaml"},
		Result:        Result{Status: "success"},
	}

	if err := w.Write(r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Read back and verify
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}

	var parsed Receipt
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\nContent: %s", err, string(data))
	}

	if parsed.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want %q", parsed.SchemaVersion, "1.0")
	}
	if parsed.OpID != "test-op-id-123" {
		t.Errorf("op_id = %q, want %q", parsed.OpID, "test-op-id-123")
	}
	if parsed.Result.Status != "success" {
		t.Errorf("result.status = %q, want %q", parsed.Result.Status, "success")
	}
}

func TestWriterAppend_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.jsonl")

	w, err := NewWriter(path, "append")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	// Write first receipt
	r1 := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "op-1",
		Command:       "wspolicy normalize",
		Result:        Result{Status: "success"},
	}
	if err := w.Write(r1); err != nil {
		t.Fatalf("Write 1 failed: %v", err)
	}

	// Write second receipt
	r2 := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "op-2",
		Command:       "wspolicy diff",
		Result:        Result{Status: "fail", Error: "changes detected"},
	}
	if err := w.Write(r2); err != nil {
		t.Fatalf("Write 2 failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Read back and verify
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	// Verify each line is valid JSON
	for i, line := range lines {
		var parsed Receipt
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i+1, err)
		}
	}

	// Verify op_ids
	var line1, line2 Receipt
	_ = json.Unmarshal([]byte(lines[0]), &line1)
	_ = json.Unmarshal([]byte(lines[1]), &line2)

	if line1.OpID != "op-1" {
		t.Errorf("line 1 op_id = %q, want %q", line1.OpID, "op-1")
	}
	if line2.OpID != "op-2" {
		t.Errorf("line 2 op_id = %q, want %q", line2.OpID, "op-2")
	}
}

func TestSessionFinish_RecordsInputsAndNormalization(t *testing.T) {
	dir := t.TempDir()

	docPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(docPath, []byte("id: p1\npolicy: []\n"), 0644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	// sha256 of "id: p1\npolicy: []\n"
	sum := sha256.Sum256([]byte("id: p1\npolicy: []\n"))
	wantDigest := "sha256:" + hex.EncodeToString(sum[:])

	receiptPath := filepath.Join(dir, "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := observability.WithOpID(context.Background())
	ctx = WithWriter(ctx, w)

	sess := Start(ctx, "wspolicy normalize", []string{docPath})
	err = sess.Finish(nil,
		WithInputs(docPath, filepath.Join(dir, "missing.yaml")),
		WithNormalization([]PolicyResult{{URI: docPath + "#p1", ID: "p1", Kind: "empty", Alternatives: 1}}),
	)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(receiptPath)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}

	var parsed Receipt
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(parsed.Inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(parsed.Inputs))
	}
	if parsed.Inputs[0].Digest != wantDigest {
		t.Errorf("inputs[0].digest = %q, want %q", parsed.Inputs[0].Digest, wantDigest)
	}
	if parsed.Inputs[1].Digest != "" {
		t.Errorf("inputs[1].digest = %q, want empty for unreadable file", parsed.Inputs[1].Digest)
	}
	if parsed.Normalization == nil || len(parsed.Normalization.Policies) != 1 {
		t.Fatalf("normalization = %+v, want one policy", parsed.Normalization)
	}
	if got := parsed.Normalization.Policies[0].Kind; got != "empty" {
		t.Errorf("policies[0].kind = %q, want %q", got, "empty")
	}
	if parsed.Result.Status != "success" {
		t.Errorf("result.status = %q, want success", parsed.Result.Status)
	}
}

func TestSessionFinish_NoWriter(t *testing.T) {
	sess := Start(context.Background(), "wspolicy check", nil)
	if err := sess.Finish(fmt.Errorf("boom"), WithCheck("strict", "fail", nil)); err != nil {
		t.Errorf("Finish without writer = %v, want nil", err)
	}
}

func TestErrorTruncation(t *testing.T) {
	dir := t.TempDir()
	receiptPath := filepath.Join(dir, "receipt.json")

	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := observability.WithOpID(context.Background())
	ctx = WithWriter(ctx, w)

	// Create a very long error string
	longError := strings.Repeat("x", 5000)

	sess := Start(ctx, "wspolicy normalize", []string{"policy.yaml"})
	if err := sess.Finish(fmt.Errorf("error: %s", longError)); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Read and verify
	data, err := os.ReadFile(receiptPath)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}

	var parsed Receipt
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(parsed.Result.Error) > MaxErrorLength {
		t.Errorf("error length = %d, want <= %d", len(parsed.Result.Error), MaxErrorLength)
	}
	if len(parsed.Result.Error) < MaxErrorLength-10 {
		t.Errorf("error should be truncated to near MaxErrorLength, got %d", len(parsed.Result.Error))
	}
}

func TestContextWithWriter(t *testing.T) {
	// Without writer in context
	ctx := context.Background()
	if w := From(ctx); w != nil {
		t.Error("From should return nil when no writer set")
	}

	// With writer in context
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.json")
	writer, _ := NewWriter(path, "overwrite")
	ctx = WithWriter(ctx, writer)

	if w := From(ctx); w != writer {
		t.Error("From should return the writer stored in context")
	}
}

func TestWriterCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	nestedPath := filepath.Join(dir, "a", "b", "c", "receipt.json")

	w, err := NewWriter(nestedPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter should create nested directories: %v", err)
	}
	defer w.Close()

	// Verify directory was created
	if _, err := os.Stat(filepath.Dir(nestedPath)); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeOverwrite, false},
		{"overwrite", ModeOverwrite, false},
		{"append", ModeAppend, false},
		{"rotate", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := NewWriter(filepath.Join(t.TempDir(), "r.json"), "rotate"); err == nil {
		t.Error("NewWriter should reject an unknown mode")
	}
}

func TestWriterClose_Twice(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "r.json"), "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
