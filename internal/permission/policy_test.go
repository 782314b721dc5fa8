package permission

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileFailsClosed(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "permissions.json"))

	first := store.Load()
	second := store.Load()
	if first != (Set{}) {
		t.Fatalf("first load = %+v, want all false", first)
	}
	if first != second {
		t.Fatalf("loads differ: %+v vs %+v", first, second)
	}
	for _, c := range Categories() {
		if first.Allowed(c) {
			t.Fatalf("%s allowed on missing file", c)
		}
	}
}

func TestLoadCorruptFileFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	if err := os.WriteFile(path, []byte(`{"install_packages": tru`), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := NewStore(path).Load(); got != (Set{}) {
		t.Fatalf("corrupt load = %+v, want all false", got)
	}
}

func TestLoadReadsFreshEachTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	store := NewStore(path)
	if store.Load().InstallPackages {
		t.Fatalf("install allowed before file exists")
	}
	if err := os.WriteFile(path, []byte(`{"install_packages": true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if !store.Load().InstallPackages {
		t.Fatalf("edit not visible on next load")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "permissions.json"))
	want := Set{}.With(ManageServices, true).With(GeneralCommands, true)
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := store.Load(); got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Install_Packages ")
	if !ok || c != InstallPackages {
		t.Fatalf("ParseCategory = %q,%v", c, ok)
	}
	if _, ok := ParseCategory("root"); ok {
		t.Fatalf("unknown category accepted")
	}
}

func TestGrantedAndSummary(t *testing.T) {
	set := Set{SystemUpdate: true}
	granted, denied := set.Granted()
	if len(granted) != 1 || granted[0] != SystemUpdate {
		t.Fatalf("granted = %v", granted)
	}
	if len(denied) != 4 {
		t.Fatalf("denied = %v", denied)
	}
	if !strings.Contains(set.Summary(), "system_update: on") || !strings.Contains(set.Summary(), "general_commands: off") {
		t.Fatalf("summary = %q", set.Summary())
	}
}
