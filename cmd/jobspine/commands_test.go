package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobspine/internal/manifest"
	"jobspine/internal/queue"
)

func TestWorkerCompletesAndStatusReports(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "worker")
	if err != nil {
		t.Fatalf("idle worker: %v", err)
	}
	requireContains(t, out, "No queued jobs.")

	if _, _, err := runCLI(t, env, "register", "--intake-id", "alpha", "--consumer", "Vault-3DT", "--notes", "first pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Queued")

	out, _, err = runCLI(t, env, "worker", "--poll-seconds", "0.1")
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	requireContains(t, out, "Completed alpha/v0001.")

	stub := filepath.Join(env.cfg.JobsDir(), "alpha", "versions", "v0001", "STUB_EXECUTION.md")
	if _, err := os.Stat(stub); err != nil {
		t.Fatalf("expected stub execution file: %v", err)
	}

	out, _, err = runCLI(t, env, "status", "alpha")
	if err != nil {
		t.Fatalf("status alpha: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "STUB_EXECUTION")

	out, _, err = runCLI(t, env, "status", "alpha", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var record manifest.JobRecord
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("decode status json: %v", err)
	}
	if len(record.Versions) != 1 || record.Versions[0].Status != queue.StatusCompleted {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "status", "missing"); err == nil {
		t.Fatal("expected unknown job to fail")
	}
}

func TestHistoryListsTransitions(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history before journal: %v", err)
	}
	requireContains(t, out, "No transitions recorded.")

	if _, _, err := runCLI(t, env, "register", "--intake-id", "beta", "--consumer", "Vault-3DT"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := runCLI(t, env, "worker"); err != nil {
		t.Fatalf("worker: %v", err)
	}

	out, _, err = runCLI(t, env, "history", "beta")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	registered := strings.Index(out, "Registered")
	claimed := strings.Index(out, "Claimed")
	running := strings.Index(out, "Queued -> Running")
	if registered < 0 || claimed < 0 || running < 0 {
		t.Fatalf("expected all transitions in history, got:\n%s", out)
	}
	if !(registered < claimed && claimed < running) {
		t.Fatalf("expected oldest-first order, got:\n%s", out)
	}
	requireContains(t, out, "Running -> Completed")
}

func TestDoctorPassesOnHealthyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "register", "--intake-id", "gamma", "--consumer", "Vault-3DT"); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, _, err := runCLI(t, env, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[PASS]")
	requireContains(t, out, "All checks passed.")
}

func TestDoctorFailsOnCorruptManifest(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "register", "--intake-id", "delta", "--consumer", "Vault-3DT"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := os.WriteFile(env.cfg.ManifestPath(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, env, "doctor")
	if err == nil {
		t.Fatalf("expected doctor to fail, output:\n%s", out)
	}
	requireContains(t, out, "[FAIL]")
}

func TestManifestCheckAndRebuild(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, id := range []string{"one", "two"} {
		if _, _, err := runCLI(t, env, "register", "--intake-id", id, "--consumer", "Vault-3DT"); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if _, _, err := runCLI(t, env, "worker"); err != nil {
		t.Fatalf("worker: %v", err)
	}

	out, _, err := runCLI(t, env, "manifest", "check")
	if err != nil {
		t.Fatalf("manifest check: %v", err)
	}
	requireContains(t, out, "Manifest matches metadata (2 jobs, 2 versions).")

	if err := os.Remove(env.cfg.ManifestPath()); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, env, "manifest", "check")
	if err == nil {
		t.Fatalf("expected drift after removing manifest, output:\n%s", out)
	}
	requireContains(t, out, "one/v0001 (missing)")

	out, _, err = runCLI(t, env, "manifest", "rebuild")
	if err != nil {
		t.Fatalf("manifest rebuild: %v", err)
	}
	requireContains(t, out, "with 2 jobs and 2 versions")

	out, _, err = runCLI(t, env, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if got := m.Jobs["one"].Versions[0].Status; got != queue.StatusCompleted {
		t.Fatalf("expected rebuilt status completed for one, got %q", got)
	}
	if got := m.Jobs["two"].Versions[0].Status; got != queue.StatusQueued {
		t.Fatalf("expected rebuilt status queued for two, got %q", got)
	}
}

func TestRootFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(t.TempDir(), "other-root")

	if _, _, err := runCLI(t, env, "--root", other, "register", "--intake-id", "omega", "--consumer", "Vault-3DT"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := os.Stat(filepath.Join(other, "JOBS", "omega", "versions", "v0001", "metadata.json")); err != nil {
		t.Fatalf("expected registration under --root: %v", err)
	}
	if _, err := os.Stat(env.cfg.Paths.Root); !os.IsNotExist(err) {
		t.Fatalf("expected configured root untouched, stat err=%v", err)
	}
}

func TestReadOnlyCommandsLeaveRootUncreated(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{{"config", "validate"}, {"status"}, {"history"}} {
		if _, _, err := runCLI(t, env, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	if _, err := os.Stat(env.cfg.Paths.Root); !os.IsNotExist(err) {
		t.Fatalf("expected store root to stay uncreated, stat err=%v", err)
	}
}
