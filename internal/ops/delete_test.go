package ops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDelete_NormalFile(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "file.txt")
	if err := os.WriteFile(f, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Delete(f, root); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := os.Lstat(f); !os.IsNotExist(err) {
		t.Fatal("file should have been deleted")
	}
}

func TestDelete_Directory_Refused(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "subdir")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	err := Delete(dir, root)
	if !errors.Is(err, ErrNotFile) {
		t.Fatalf("expected ErrNotFile, got %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("directory contents should be untouched")
	}
}

func TestDelete_Missing(t *testing.T) {
	root := t.TempDir()
	err := Delete(filepath.Join(root, "gone.txt"), root)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestDelete_RootItself_Blocked(t *testing.T) {
	root := t.TempDir()
	err := Delete(root, root)
	if err == nil {
		t.Fatal("deleting root itself should be blocked")
	}
}

func TestDelete_OutsideRoot_Blocked(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}

	err := Delete(target, root)
	if err == nil {
		t.Fatal("deleting outside root should be blocked")
	}
	// Verify file still exists
	if _, err := os.Lstat(target); err != nil {
		t.Fatal("file outside root should not have been deleted")
	}
}

func TestDelete_DotDotTraversal_Blocked(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(root, "..", "shouldnotdelete.txt")
	// We just need to verify the path check blocks it
	err := Delete(outside, root)
	if err == nil {
		t.Fatal("dot-dot traversal should be blocked")
	}
}

func TestDelete_SymlinkInsideRoot_DeletesLink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	if err := os.WriteFile(target, []byte("target"), 0644); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(root, "mylink")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	// Deleting a symlink inside root should succeed (removes the link, not the target)
	if err := Delete(link, root); err != nil {
		t.Fatalf("expected success deleting symlink, got %v", err)
	}
	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Fatal("symlink should have been deleted")
	}
	// Target should still exist
	if _, err := os.Lstat(target); err != nil {
		t.Fatal("target of symlink should still exist")
	}
}

func TestDelete_ThroughSymlinkDir_Blocked(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}

	// Create a symlink dir inside root that points to outside
	symlinkDir := filepath.Join(root, "escape")
	if err := os.Symlink(outside, symlinkDir); err != nil {
		t.Fatal(err)
	}

	// Try to delete a file through the symlinked directory
	throughPath := filepath.Join(root, "escape", "secret.txt")
	err := Delete(throughPath, root)
	if err == nil {
		t.Fatal("deleting through symlink dir should be blocked")
	}
	// File should still exist
	if _, err := os.Lstat(target); err != nil {
		t.Fatal("file should not have been deleted through symlink")
	}
}

func TestDelete_BrokenSymlink_Deleted(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "broken")
	if err := os.Symlink("/nonexistent/path/that/doesnt/exist", link); err != nil {
		t.Fatal(err)
	}

	if err := Delete(link, root); err != nil {
		t.Fatalf("expected success deleting broken symlink, got %v", err)
	}
	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Fatal("broken symlink should have been deleted")
	}
}

func TestDelete_DotDotInName_Allowed(t *testing.T) {
	root := t.TempDir()
	// "..foo" is a valid filename, not a traversal.
	f := filepath.Join(root, "..foo")
	if err := os.WriteFile(f, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Delete(f, root); err != nil {
		t.Fatalf("file named ..foo should be deletable, got %v", err)
	}
	if _, err := os.Lstat(f); !os.IsNotExist(err) {
		t.Fatal("..foo should have been deleted")
	}
}

func TestDelete_NestedFile(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	f := filepath.Join(sub, "deep.txt")
	if err := os.WriteFile(f, []byte("deep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Delete(f, root); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := os.Lstat(f); !os.IsNotExist(err) {
		t.Fatal("nested file should have been deleted")
	}
}

func TestDeleteAll_ContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("dup"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	missing := filepath.Join(root, "missing.txt")

	deleted, err := DeleteAll([]string{a, missing, b}, root)
	if err == nil {
		t.Fatal("expected the missing file to be reported")
	}
	if len(deleted) != 2 || deleted[0] != a || deleted[1] != b {
		t.Fatalf("unexpected deleted list %v", deleted)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should have been deleted", p)
		}
	}
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("data", "photos")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.jpg"), true},
		{filepath.Join(root, "..foo"), true},
		{root, false},
		{filepath.Join(root, ".."), false},
		{sep + filepath.Join("data", "photos2", "a.jpg"), false},
	}
	for _, tt := range tests {
		if got := within(root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}

func TestCheckSurvivors(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "b-target")
	other := filepath.Join(dir, "c-copy")
	link := filepath.Join(dir, "a-link")
	link2 := filepath.Join(dir, "d-link")
	for _, p := range []string{target, other} {
		if err := os.WriteFile(p, []byte("same"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []string{link, link2} {
		if err := os.Symlink(target, p); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		group  []string
		remove []string
		want   error
	}{
		{"target with only its link left", []string{link, target}, []string{target}, ErrLastCopy},
		{"target with two links left", []string{link, link2, target}, []string{target}, ErrLastCopy},
		{"link removed, target kept", []string{link, target}, []string{link}, nil},
		{"independent copy survives", []string{link, target, other}, []string{target}, nil},
		{"plain copies", []string{target, other}, []string{other}, nil},
		{"unresolvable survivor", []string{filepath.Join(dir, "missing"), target}, []string{target}, nil},
	}
	for _, tc := range tests {
		remove := make(map[string]bool)
		for _, p := range tc.remove {
			remove[p] = true
		}
		if err := CheckSurvivors(tc.group, remove); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestCheckSurvivors_GuardsDeleteAll(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "b-target")
	link := filepath.Join(root, "a-link")
	if err := os.WriteFile(target, []byte("only copy"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	group := []string{link, target}

	if err := CheckSurvivors(group, map[string]bool{target: true}); !errors.Is(err, ErrLastCopy) {
		t.Fatalf("expected ErrLastCopy before deleting the target, got %v", err)
	}

	// Removing the link instead keeps the content reachable.
	if err := CheckSurvivors(group, map[string]bool{link: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := DeleteAll([]string{link}, root); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "only copy" {
		t.Fatalf("content lost: %q, %v", data, err)
	}
}
