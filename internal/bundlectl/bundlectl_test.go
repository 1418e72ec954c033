package bundlectl

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeKeys(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	seed := priv.Seed()

	dir := t.TempDir()
	privPath = filepath.Join(dir, "private.key")
	pubPath = filepath.Join(dir, "public.key")
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privPath, pubPath
}

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "platform.yaml"), []byte("walls:\n  - id: 1\n    name: lobby\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestExportVerifyRoundTrip(t *testing.T) {
	privPath, pubPath := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")

	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	result, err := Verify(bundlePath, pubPath)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected verification to succeed, got %q", result.Message)
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	privPath, _ := writeKeys(t)
	_, otherPub := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")

	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	result, err := Verify(bundlePath, otherPub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Fatal("expected verification to fail against a mismatched public key")
	}
}

func TestVerify_RejectsTamperedContent(t *testing.T) {
	privPath, pubPath := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")

	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	tamperDir := t.TempDir()
	if err := unpackTarZst(bundlePath, tamperDir); err != nil {
		t.Fatalf("unpackTarZst: %v", err)
	}
	cfgFile := filepath.Join(tamperDir, "config", "platform.yaml")
	if err := os.WriteFile(cfgFile, []byte("walls:\n  - id: 999\n    name: tampered\n"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	tamperedBundle := filepath.Join(t.TempDir(), "tampered.tar.zst")
	if err := packTarZst(tamperDir, tamperedBundle); err != nil {
		t.Fatalf("packTarZst: %v", err)
	}

	result, err := Verify(tamperedBundle, pubPath)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Fatal("expected verification to fail after tampering with bundled content")
	}
}

func TestImport_StagesIntoRingDirectory(t *testing.T) {
	privPath, pubPath := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")
	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	stageBase := t.TempDir()
	staged, err := Import(bundlePath, pubPath, Ring1Pilot, stageBase)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if filepath.Dir(staged) != filepath.Join(stageBase, "ring1-pilot") {
		t.Fatalf("expected staging under ring1-pilot, got %s", staged)
	}
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("expected staged bundle to exist: %v", err)
	}
}

func TestImport_RejectsInvalidRing(t *testing.T) {
	privPath, pubPath := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")
	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := Import(bundlePath, pubPath, Ring(9), t.TempDir()); err == nil {
		t.Fatal("expected an error for an out-of-range ring")
	}
}

func TestDiff_DetectsChangedAndMissingFiles(t *testing.T) {
	privPath, _ := writeKeys(t)
	configDir := writeConfigDir(t)
	if err := os.WriteFile(filepath.Join(configDir, "extra.txt"), []byte("only in bundle\n"), 0o644); err != nil {
		t.Fatalf("write extra file: %v", err)
	}
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")
	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	localDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(localDir, "platform.yaml"), []byte("walls:\n  - id: 1\n    name: renamed\n"), 0o644); err != nil {
		t.Fatalf("write local config: %v", err)
	}

	diffs, err := Diff(bundlePath, localDir)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) == 0 {
		t.Fatal("expected at least one diff for the changed wall name")
	}
	var sawChanged, sawMissing bool
	for _, d := range diffs {
		if d.Kind == DiffChanged && d.Path == "platform.yaml:walls.0.name" {
			sawChanged = true
		}
		if d.Kind == DiffMissingLocal && d.Path == "extra.txt" {
			sawMissing = true
		}
	}
	if !sawChanged || !sawMissing {
		t.Fatalf("expected a changed wall name and a missing extra.txt, got %+v", diffs)
	}
}

func TestDiff_NoDifferencesWhenIdentical(t *testing.T) {
	privPath, _ := writeKeys(t)
	configDir := writeConfigDir(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.tar.zst")
	if err := Export(configDir, bundlePath, privPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	diffs, err := Diff(bundlePath, configDir)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected no diffs against the original config dir, got %+v", diffs)
	}
}
