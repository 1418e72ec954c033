// Package bundlectl implements the platform's offline bundle tool: export
// a config directory into a signed, compressed archive; verify its
// signature and content hashes; stage it by rollout ring; and diff it
// against a local config tree. Grounded on tools/bundlectl/bundlectl.py,
// reworked onto Go's stdlib ed25519/tar/sha256 plus klauspost/compress's
// zstd (the Python reference's pyzstd/external-zstd-binary fallback has
// no equivalent need here: the library is always available).
package bundlectl

import (
	"archive/tar"
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/videowall-controlplane/internal/canonicaljson"
)

// ManifestName is the file inside every bundle recording the signed file
// list.
const ManifestName = "manifest.json"

// Ring is a rollout tier a staged bundle targets.
type Ring int

const (
	Ring0Staging Ring = 0
	Ring1Pilot   Ring = 1
	Ring2Full    Ring = 2
)

// StageDirName maps a Ring to its staging directory name under the
// configured base directory.
func (r Ring) StageDirName() (string, error) {
	switch r {
	case Ring0Staging:
		return "ring0-staging", nil
	case Ring1Pilot:
		return "ring1-pilot", nil
	case Ring2Full:
		return "ring2-full", nil
	default:
		return "", fmt.Errorf("bundlectl: ring must be 0, 1, or 2, got %d", r)
	}
}

// FileEntry is one file's recorded identity within a Manifest.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Signature is an ed25519 signature over a Manifest's digest.
type Signature struct {
	Alg string `json:"alg"`
	Sig string `json:"sig"`
}

// Manifest records every file in a config tree at export time, plus the
// signature over that record.
type Manifest struct {
	Version   int         `json:"version"`
	ConfigDir string      `json:"config_dir"`
	Files     []FileEntry `json:"files"`
	Signature *Signature  `json:"signature,omitempty"`
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("bundlectl: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("bundlectl: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// collectFiles walks dir and returns every regular file's absolute path,
// sorted for deterministic manifest ordering.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bundlectl: walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func buildManifest(configDir string, files []string) (Manifest, error) {
	m := Manifest{Version: 1, ConfigDir: configDir}
	for _, p := range files {
		rel, err := filepath.Rel(configDir, p)
		if err != nil {
			return Manifest{}, fmt.Errorf("bundlectl: relativize %s: %w", p, err)
		}
		sum, err := sha256File(p)
		if err != nil {
			return Manifest{}, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return Manifest{}, fmt.Errorf("bundlectl: stat %s: %w", p, err)
		}
		m.Files = append(m.Files, FileEntry{Path: filepath.ToSlash(rel), SHA256: sum, Size: info.Size()})
	}
	return m, nil
}

// manifestDigest hashes m's canonical JSON form with Signature cleared, so
// signing and verification always operate over the same bytes regardless
// of how the signature field itself is populated.
func manifestDigest(m Manifest) ([]byte, error) {
	m.Signature = nil
	canon, err := canonicaljson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bundlectl: canonicalize manifest: %w", err)
	}
	sum := sha256.Sum256(canon)
	return sum[:], nil
}

// loadKeyBytes accepts either a 64-character hex string or the file's raw
// bytes, matching the Python reference's load_key.
func loadKeyBytes(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundlectl: read key %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 64 {
		if decoded, err := hex.DecodeString(trimmed); err == nil {
			return decoded, nil
		}
	}
	return raw, nil
}

func signDigest(digest []byte, seed []byte) (Signature, error) {
	if len(seed) != ed25519.SeedSize {
		return Signature{}, fmt.Errorf("bundlectl: private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	sig := ed25519.Sign(priv, digest)
	return Signature{Alg: "ed25519", Sig: hex.EncodeToString(sig)}, nil
}

func verifySignature(digest []byte, sig Signature, pub []byte) (bool, error) {
	if sig.Alg != "ed25519" {
		return false, fmt.Errorf("bundlectl: unknown signature alg %q", sig.Alg)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("bundlectl: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	sigBytes, err := hex.DecodeString(sig.Sig)
	if err != nil {
		return false, fmt.Errorf("bundlectl: decode signature: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), digest, sigBytes), nil
}

// packTarZst tars srcDir's contents (relative to srcDir, not including
// srcDir itself) and zstd-compresses the result to outPath.
func packTarZst(srcDir, outPath string) error {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("bundlectl: build tar: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("bundlectl: finalize tar: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("bundlectl: build zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(tarBuf.Bytes(), nil)

	if err := os.WriteFile(outPath, compressed, 0o644); err != nil {
		return fmt.Errorf("bundlectl: write bundle: %w", err)
	}
	return nil
}

// unpackTarZst decompresses and extracts a bundle into dstDir, which must
// already exist.
func unpackTarZst(bundlePath, dstDir string) error {
	compressed, err := os.ReadFile(bundlePath)
	if err != nil {
		return fmt.Errorf("bundlectl: read bundle: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("bundlectl: build zstd decoder: %w", err)
	}
	defer dec.Close()
	tarData, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("bundlectl: decompress bundle: %w", err)
	}

	tr := tar.NewReader(bytes.NewReader(tarData))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("bundlectl: read tar entry: %w", err)
		}
		target := filepath.Join(dstDir, filepath.FromSlash(header.Name))
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}

// Export builds a signed bundle from configDir's contents and writes it to
// outPath. keyPath names the ed25519 private key seed.
func Export(configDir, outPath, keyPath string) error {
	configDir, err := filepath.Abs(configDir)
	if err != nil {
		return err
	}
	files, err := collectFiles(configDir)
	if err != nil {
		return err
	}
	manifest, err := buildManifest(configDir, files)
	if err != nil {
		return err
	}
	digest, err := manifestDigest(manifest)
	if err != nil {
		return err
	}
	seed, err := loadKeyBytes(keyPath)
	if err != nil {
		return err
	}
	sig, err := signDigest(digest, seed)
	if err != nil {
		return err
	}
	manifest.Signature = &sig

	tmpDir, err := os.MkdirTemp("", "vw-bundlectl-export-*")
	if err != nil {
		return fmt.Errorf("bundlectl: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cfgOut := filepath.Join(tmpDir, "config")
	if err := os.MkdirAll(cfgOut, 0o755); err != nil {
		return err
	}
	for _, p := range files {
		rel, err := filepath.Rel(configDir, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(cfgOut, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return err
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("bundlectl: marshal signed manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ManifestName), manifestJSON, 0o644); err != nil {
		return err
	}

	return packTarZst(tmpDir, outPath)
}

// VerifyResult is the outcome of checking a bundle's signature and content
// hashes.
type VerifyResult struct {
	OK      bool
	Message string
}

// Verify checks bundlePath's manifest signature against pubkeyPath, then
// confirms every recorded file's hash matches its extracted content.
func Verify(bundlePath, pubkeyPath string) (VerifyResult, error) {
	pub, err := loadKeyBytes(pubkeyPath)
	if err != nil {
		return VerifyResult{}, err
	}

	tmpDir, err := os.MkdirTemp("", "vw-bundlectl-verify-*")
	if err != nil {
		return VerifyResult{}, fmt.Errorf("bundlectl: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := unpackTarZst(bundlePath, tmpDir); err != nil {
		return VerifyResult{}, err
	}

	manifestPath := filepath.Join(tmpDir, ManifestName)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return VerifyResult{OK: false, Message: "manifest missing"}, nil
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return VerifyResult{OK: false, Message: "manifest unparsable"}, nil
	}
	if manifest.Signature == nil {
		return VerifyResult{OK: false, Message: "manifest missing signature"}, nil
	}

	digest, err := manifestDigest(manifest)
	if err != nil {
		return VerifyResult{}, err
	}
	ok, err := verifySignature(digest, *manifest.Signature, pub)
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok {
		return VerifyResult{OK: false, Message: "signature invalid"}, nil
	}

	cfgDir := filepath.Join(tmpDir, "config")
	for _, fe := range manifest.Files {
		p := filepath.Join(cfgDir, filepath.FromSlash(fe.Path))
		if _, err := os.Stat(p); err != nil {
			return VerifyResult{OK: false, Message: fmt.Sprintf("missing file: %s", fe.Path)}, nil
		}
		got, err := sha256File(p)
		if err != nil {
			return VerifyResult{}, err
		}
		if got != fe.SHA256 {
			return VerifyResult{OK: false, Message: fmt.Sprintf("hash mismatch: %s", fe.Path)}, nil
		}
	}
	return VerifyResult{OK: true, Message: "ok"}, nil
}

// Import verifies bundlePath and, on success, copies it into the staging
// directory for ring under baseDir. Returns the staged file's path.
func Import(bundlePath, pubkeyPath string, ring Ring, baseDir string) (string, error) {
	result, err := Verify(bundlePath, pubkeyPath)
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", fmt.Errorf("bundlectl: %s", result.Message)
	}

	dirName, err := ring.StageDirName()
	if err != nil {
		return "", err
	}
	dst := filepath.Join(baseDir, dirName)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("bundlectl: create staging dir: %w", err)
	}

	target := filepath.Join(dst, filepath.Base(bundlePath))
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("bundlectl: stage bundle: %w", err)
	}
	return target, nil
}

// DiffKind categorizes one DiffEntry.
type DiffKind string

const (
	DiffMissingLocal  DiffKind = "missing_local"
	DiffChanged       DiffKind = "changed"
	DiffChangedBinary DiffKind = "changed_binary"
)

// DiffEntry is one detected difference between a bundle's config and a
// local config tree.
type DiffEntry struct {
	Path  string   `json:"path"`
	Kind  DiffKind `json:"kind"`
	Local any      `json:"local,omitempty"`
	Bundle any     `json:"bundle,omitempty"`
}

// Diff extracts bundlePath and compares its config tree against configDir:
// YAML files are compared key-by-key (flattened dotted paths), everything
// else by content hash.
func Diff(bundlePath, configDir string) ([]DiffEntry, error) {
	tmpDir, err := os.MkdirTemp("", "vw-bundlectl-diff-*")
	if err != nil {
		return nil, fmt.Errorf("bundlectl: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := unpackTarZst(bundlePath, tmpDir); err != nil {
		return nil, err
	}
	bundleCfg := filepath.Join(tmpDir, "config")

	configDir, err = filepath.Abs(configDir)
	if err != nil {
		return nil, err
	}

	bundleFiles, err := collectFiles(bundleCfg)
	if err != nil {
		return nil, err
	}

	var diffs []DiffEntry
	for _, bf := range bundleFiles {
		rel, err := filepath.Rel(bundleCfg, bf)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		localPath := filepath.Join(configDir, filepath.FromSlash(rel))

		if _, err := os.Stat(localPath); err != nil {
			diffs = append(diffs, DiffEntry{Path: rel, Kind: DiffMissingLocal, Bundle: "present_in_bundle"})
			continue
		}

		ext := strings.ToLower(filepath.Ext(bf))
		if ext == ".yaml" || ext == ".yml" {
			entryDiffs, err := diffYAML(rel, localPath, bf)
			if err != nil {
				return nil, err
			}
			diffs = append(diffs, entryDiffs...)
			continue
		}

		localHash, err := sha256File(localPath)
		if err != nil {
			return nil, err
		}
		bundleHash, err := sha256File(bf)
		if err != nil {
			return nil, err
		}
		if localHash != bundleHash {
			diffs = append(diffs, DiffEntry{Path: rel, Kind: DiffChangedBinary, Local: localHash, Bundle: bundleHash})
		}
	}
	return diffs, nil
}

func diffYAML(rel, localPath, bundlePath string) ([]DiffEntry, error) {
	localDoc, err := loadYAMLFlat(localPath)
	if err != nil {
		return nil, err
	}
	bundleDoc, err := loadYAMLFlat(bundlePath)
	if err != nil {
		return nil, err
	}

	keys := map[string]struct{}{}
	for k := range localDoc {
		keys[k] = struct{}{}
	}
	for k := range bundleDoc {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []DiffEntry
	for _, k := range sorted {
		lv, bv := localDoc[k], bundleDoc[k]
		if !valuesEqual(lv, bv) {
			diffs = append(diffs, DiffEntry{Path: fmt.Sprintf("%s:%s", rel, k), Kind: DiffChanged, Local: lv, Bundle: bv})
		}
	}
	return diffs, nil
}

func valuesEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// loadYAMLFlat parses a YAML document and flattens it into dotted-path keys.
func loadYAMLFlat(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundlectl: read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bundlectl: parse yaml %s: %w", path, err)
	}
	out := map[string]any{}
	flattenYAML(doc, "", out)
	return out, nil
}

func flattenYAML(doc any, prefix string, out map[string]any) {
	switch v := doc.(type) {
	case map[string]any:
		for k, val := range v {
			flattenYAML(val, prefix+k+".", out)
		}
	case []any:
		for i, val := range v {
			flattenYAML(val, fmt.Sprintf("%s%d.", prefix, i), out)
		}
	default:
		key := strings.TrimSuffix(prefix, ".")
		out[key] = v
	}
}
