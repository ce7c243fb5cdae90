package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

const shardCount = 256

// Store is the content-addressed file tree rooted at a configured cache
// path (spec §3 "Artifact store"). It holds two sharded trees —
// "meta" (one small gob file per (rule-id, digest) recording the
// artifact path and the dependency record that produced it) and
// "artifacts" (the paths MkPath hands out) — sharded 256-wide by
// the first two hex digits of a hash, the same fan-out nocc's FileCache uses
// in internal/server/file-cache.go to keep any one directory's entry
// count bounded.
type Store struct {
	root string
}

// Open creates (if needed) the sharded directory tree under root and
// returns a Store backed by it.
func Open(root string) (*Store, error) {
	for _, sub := range []string{"meta", "artifacts"} {
		for i := 0; i < shardCount; i++ {
			dir := filepath.Join(root, sub, fmt.Sprintf("%02x", i))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
	}
	return &Store{root: root}, nil
}

type metaEntry struct {
	Artifact string
	Record   DependencyRecord
}

func (s *Store) metaPath(ruleID, digest string) string {
	idHash := sha256.Sum256([]byte(ruleID))
	idHex := hex.EncodeToString(idHash[:])
	return filepath.Join(s.root, "meta", idHex[:2], idHex+"-"+digest+".meta")
}

// Lookup returns the artifact path persisted for (ruleID, digest), and
// false on any miss: no entry, a corrupt entry, or an entry whose
// artifact has since disappeared from disk (spec §4.1 "lookup(rule-id,
// dep-digest) → artifact | miss").
func (s *Store) Lookup(ruleID, digest string) (string, bool) {
	data, err := os.ReadFile(s.metaPath(ruleID, digest))
	if err != nil {
		return "", false
	}
	var e metaEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return "", false
	}
	if _, err := os.Stat(e.Artifact); err != nil {
		return "", false
	}
	return e.Artifact, true
}

// Store persists the (ruleID, digest) -> artifact mapping and its
// dependency record. The meta file is written under a temp name in the
// same shard directory and atomically renamed into place — the
// two-phase commit of spec §9 ("write artifact under a tmp name, then
// atomically rename both artifact and meta"); the artifact itself is
// expected to already have been written to its final path by Execute
// before Store is called, so only the meta rename needs to happen here
// for the pair to become visible together.
func (s *Store) Store(ruleID, digest, artifact string, record DependencyRecord) error {
	final := s.metaPath(ruleID, digest)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(metaEntry{Artifact: artifact, Record: record}); err != nil {
		return err
	}
	tmp := final + ".tmp" + strconv.Itoa(os.Getpid()) + "." + strconv.Itoa(rand.Int())
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// MkPath allocates a fresh path under instance's shard of the artifact
// tree, for a file or directory Execute is about to write (spec §3
// "(a) a fresh path under its own prefix"). Different (instance, key)
// pairs never collide; the same pair is stable across runs so a later
// build with an unchanged digest can memo-hit straight to this path.
func (s *Store) MkPath(instance, key, suffix string) string {
	idHash := sha256.Sum256([]byte(instance))
	idHex := hex.EncodeToString(idHash[:])
	keyHash := sha256.Sum256([]byte(key))
	name := idHex + "-" + hex.EncodeToString(keyHash[:8]) + suffix
	return filepath.Join(s.root, "artifacts", idHex[:2], name)
}

// MkTemp allocates a scratch path outside the persistent tree (spec §3
// "(b) a temp file"), for intermediates Execute doesn't want to keep
// memoized (a downloaded tarball before extraction, a shim configure's
// stdout capture).
func (s *Store) MkTemp() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("nobs-%d-%d", os.Getpid(), rand.Int63()))
}

// Root returns the artifact store's configured cache path, so callers
// can tell apart a path the store itself produced (nobsrule.py's
// `library` filters the entry's transitive headers down to those under
// `me.memodb.path_art` or the repo root) from one a user's own tree
// contains.
func (s *Store) Root() string {
	return s.root
}
