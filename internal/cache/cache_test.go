package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

func TestKey_StableAndNamespaced(t *testing.T) {
	a := Key("search", "cachorro", "motifs", "en")
	b := Key("search", "cachorro", "motifs", "en")
	c := Key("search", "cachorro", "motifs", "pt-br")

	if a != b {
		t.Errorf("expected identical keys, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different keys for different languages")
	}
	if !strings.HasPrefix(a, "wikimotivos:v1:search:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit with v, got %q %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 item, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("sparql", "SELECT 1")
	if err := c.Set(key, []byte("rows"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok := c.Get(key); !ok || string(got) != "rows" {
		t.Fatalf("expected hit, got %q %v", got, ok)
	}

	if err := c.Set(key, []byte("old"), -time.Second); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && filepath.Ext(path) == ".tmp" {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
}

func TestDiskCache_ShardsLongKeys(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	// Raw query text as a key: long and full of characters file names cannot hold
	key := "sparql:" + strings.Repeat("SELECT ?item WHERE { ?item wdt:P195 wd:Q371803 } ", 20)
	if err := c.Set(key, []byte("rows"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok := c.Get(key); !ok || string(got) != "rows" {
		t.Fatalf("expected hit, got %q %v", got, ok)
	}

	path := c.path(key)
	if filepath.Dir(filepath.Dir(path)) != dir {
		t.Errorf("expected one shard level under %s, got %s", dir, path)
	}
	if len(filepath.Base(filepath.Dir(path))) != 2 {
		t.Errorf("unexpected shard name in %s", path)
	}
}

func TestDiskCache_IgnoresForeignEntry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	// An entry whose recorded key differs is treated as a miss
	data := []byte(`{"key":"other","data":"cm93cw==","expires_at":"2999-01-01T00:00:00Z"}`)
	path := c.path("mine")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("mine"); ok {
		t.Error("expected miss for an entry recorded under another key")
	}
}

func TestDiskCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	_ = c.Set("fresh", []byte("1"), time.Hour)
	_ = c.Set("stale-a", []byte("2"), -time.Minute)
	_ = c.Set("stale-b", []byte("3"), -time.Minute)

	corrupt := c.path("corrupt")
	_ = os.MkdirAll(filepath.Dir(corrupt), 0o755)
	_ = os.WriteFile(corrupt, []byte("{"), 0o644)

	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 entries pruned, got %d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("expected fresh entry to survive")
	}

	missing := NewDiskCache(filepath.Join(dir, "absent"), time.Hour)
	if n, err := missing.Prune(); err != nil || n != 0 {
		t.Errorf("expected empty prune of a missing dir, got %d %v", n, err)
	}
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Delete("nope"); err != nil {
		t.Errorf("expected no error deleting a missing key, got %v", err)
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	layered := NewLayeredCache(time.Minute, dir, time.Hour)

	// Write only to disk, as a previous process would have
	disk := NewDiskCache(dir, time.Hour)
	if err := disk.Set("k", []byte("from-disk"), 0); err != nil {
		t.Fatalf("disk set: %v", err)
	}

	got, ok := layered.Get("k")
	if !ok || string(got) != "from-disk" {
		t.Fatalf("expected disk hit, got %q %v", got, ok)
	}
	if got, ok := layered.memory.Get("k"); !ok || string(got) != "from-disk" {
		t.Errorf("expected value promoted to memory, got %q %v", got, ok)
	}
}

func TestLayeredCache_ExpiredSetLeavesNoMemoryCopy(t *testing.T) {
	layered := NewLayeredCache(time.Minute, t.TempDir(), time.Hour)

	_ = layered.Set("k", []byte("fresh"), 0)
	if err := layered.Set("k", []byte("stale"), -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok := layered.Get("k"); ok {
		t.Errorf("expected miss, got %q", got)
	}
}

func TestSet_Prune(t *testing.T) {
	dir := t.TempDir()
	set := NewSet(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute, DiskTTL: time.Hour, DiskDir: dir})

	_ = set.Queries.Set("old", []byte("x"), -time.Second)
	if n, err := set.Prune(); err != nil || n != 1 {
		t.Errorf("expected one pruned entry, got %d %v", n, err)
	}

	disabled := NewSet(model.CacheConfig{})
	if n, err := disabled.Prune(); err != nil || n != 0 {
		t.Errorf("expected no-op prune, got %d %v", n, err)
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	type row struct{ Name string }
	if err := SetJSON(c, "rows", []row{{"a"}, {"b"}}, 0); err != nil {
		t.Fatalf("set json: %v", err)
	}
	var got []row
	if !GetJSON(c, "rows", &got) || len(got) != 2 || got[1].Name != "b" {
		t.Fatalf("unexpected decode: %v", got)
	}

	_ = c.Set("bad", []byte("{"), 0)
	if GetJSON(c, "bad", &got) {
		t.Error("expected undecodable entry to miss")
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("expected undecodable entry to be dropped")
	}
}

func TestNewSet_Disabled(t *testing.T) {
	set := NewSet(model.CacheConfig{Enabled: false})
	_ = set.Memory.Set("k", []byte("v"), 0)
	if _, ok := set.Memory.Get("k"); ok {
		t.Error("expected disabled cache to store nothing")
	}
}
