package materialize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestMaterialize_CopyMode(t *testing.T) {
	tmp := t.TempDir()
	src1 := filepath.Join(tmp, "in", "a.jpg")
	src2 := filepath.Join(tmp, "in", "b.jpg")
	writeFile(t, src1, "face-a")
	writeFile(t, src2, "face-b")

	out := filepath.Join(tmp, "out")
	m := New(out, ModeCopy)

	result, err := m.Materialize(map[string][]string{
		"Group_01":     {src1, src2},
		UnclusteredDir: {src2},
	})
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	if result.Transferred != 3 {
		t.Errorf("expected 3 transfers, got %d", result.Transferred)
	}

	if got := readFile(t, filepath.Join(out, "Group_01", "a.jpg")); got != "face-a" {
		t.Errorf("unexpected content: %q", got)
	}
	if got := readFile(t, filepath.Join(out, UnclusteredDir, "b.jpg")); got != "face-b" {
		t.Errorf("unexpected content: %q", got)
	}
	// Copy mode keeps the originals.
	if _, err := os.Stat(src1); err != nil {
		t.Errorf("source should still exist in copy mode: %v", err)
	}
}

func TestMaterialize_MoveMode(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "a.jpg")
	writeFile(t, src, "face-a")

	m := New(filepath.Join(tmp, "out"), ModeMove)
	if _, err := m.Materialize(map[string][]string{"Group_01": {src}}); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone in move mode, stat err: %v", err)
	}
	if got := readFile(t, filepath.Join(tmp, "out", "Group_01", "a.jpg")); got != "face-a" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "a.jpg")
	writeFile(t, src, "face-a")

	m := New(filepath.Join(tmp, "out"), ModeCopy)
	mapping := map[string][]string{"Group_01": {src}}

	if _, err := m.Materialize(mapping); err != nil {
		t.Fatalf("first materialize failed: %v", err)
	}

	second, err := m.Materialize(mapping)
	if err != nil {
		t.Fatalf("second materialize failed: %v", err)
	}
	if second.Transferred != 0 || second.DirsCreated != 0 {
		t.Errorf("second run should be a no-op, got %+v", second)
	}
}

func TestMaterialize_DeduplicatesSourcePaths(t *testing.T) {
	// Two observations from the same image end up as one file.
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "twins.jpg")
	writeFile(t, src, "two-faces")

	m := New(filepath.Join(tmp, "out"), ModeCopy)
	result, err := m.Materialize(map[string][]string{"Group_01": {src, src, src}})
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	if result.Transferred != 1 {
		t.Errorf("expected exactly 1 transfer for duplicated source, got %d", result.Transferred)
	}
}

func TestPlan_DryRunTouchesNothing(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "a.jpg")
	writeFile(t, src, "face-a")
	out := filepath.Join(tmp, "out")

	m := New(out, ModeCopy)
	actions, err := m.Plan(map[string][]string{"Group_01": {src}})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	// Output root + cluster dir + one transfer.
	var mkdirs, transfers int
	for _, a := range actions {
		switch a.Kind {
		case ActionMkdir:
			mkdirs++
		case ActionTransfer:
			transfers++
		}
	}
	if mkdirs != 2 || transfers != 1 {
		t.Errorf("expected 2 mkdirs and 1 transfer, got %d and %d", mkdirs, transfers)
	}

	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("plan must not create the output tree, stat err: %v", err)
	}
}

func TestApply_PartialFailureContinues(t *testing.T) {
	tmp := t.TempDir()
	good := filepath.Join(tmp, "in", "good.jpg")
	writeFile(t, good, "ok")
	missing := filepath.Join(tmp, "in", "missing.jpg")

	m := New(filepath.Join(tmp, "out"), ModeCopy)
	result, err := m.Materialize(map[string][]string{
		"Group_01": {missing, good},
	})

	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *PartialError, got %v", err)
	}
	if len(partial.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(partial.Failures))
	}
	if partial.Failures[0].Source != missing {
		t.Errorf("unexpected failed source: %s", partial.Failures[0].Source)
	}
	// The good file still went through.
	if result.Transferred != 1 {
		t.Errorf("expected the good transfer to be applied, got %d", result.Transferred)
	}
	if _, statErr := os.Stat(filepath.Join(tmp, "out", "Group_01", "good.jpg")); statErr != nil {
		t.Errorf("good file should exist: %v", statErr)
	}
}

func TestPlan_ConflictingFileWhereDirExpected(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "out")
	writeFile(t, filepath.Join(out, "Group_01"), "not a directory")

	m := New(out, ModeCopy)
	_, err := m.Plan(map[string][]string{"Group_01": {filepath.Join(tmp, "a.jpg")}})
	if !errors.Is(err, ErrFilesystemConflict) {
		t.Errorf("expected ErrFilesystemConflict, got %v", err)
	}
}

func TestTransferFile_ReplacesExistingDest(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "incoming.jpg")
	dest := filepath.Join(tmp, "x.jpg")
	writeFile(t, src, "incoming")
	writeFile(t, dest, "existing")

	if err := TransferFile(src, dest, ModeMove); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := readFile(t, dest); got != "incoming" {
		t.Errorf("expected incoming content to replace existing, got %q", got)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone after move, stat err: %v", err)
	}
	if _, err := os.Stat(dest + ".partial"); !os.IsNotExist(err) {
		t.Errorf("staging file should not remain, stat err: %v", err)
	}
}
