package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	goClone "github.com/MrEthical07/goClone"
)

func memoryBuilder(t *testing.T, mutate func(*goClone.Config)) *goClone.Builder {
	t.Helper()
	cfg := goClone.DefaultConfig()
	cfg.State.Backend = goClone.BackendMemory
	if mutate != nil {
		mutate(&cfg)
	}
	return goClone.New().WithConfig(cfg)
}

func assertDeployOutput(t *testing.T, out string) {
	t.Helper()
	for _, want := range []string{
		"Implementation V1 deployed to: 0x",
		"Factory deployed to: 0x",
		"Clone deployed to: 0x",
		"(mask 0b1010)",
		"Implementation V2 deployed to: 0x",
		"Factory upgraded to V2",
		"updated to 0b1001000",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	ids := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && strings.HasPrefix(fields[1], "id=") {
			ids[fields[0]] = strings.TrimPrefix(fields[1], "id=")
		}
	}
	want := map[string]string{"func21()": "5", "func22()": "6", "func23()": "7", "testNumber()": "4"}
	for sig, id := range want {
		if ids[sig] != id {
			t.Fatalf("%s: expected id %s, got %q\n%s", sig, id, ids[sig], out)
		}
	}
}

func TestRunDeploy(t *testing.T) {
	var out bytes.Buffer
	if err := runDeploy(context.Background(), memoryBuilder(t, nil), &out, "0b1010", "0b1001000"); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	assertDeployOutput(t, out.String())
}

func TestRunDeployWithOwnerTokens(t *testing.T) {
	b := memoryBuilder(t, func(cfg *goClone.Config) {
		cfg.Owner.Enabled = true
		cfg.Owner.SigningMethod = "hs256"
		cfg.Owner.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
		cfg.Owner.TokenTTL = time.Minute
	})

	var out bytes.Buffer
	if err := runDeploy(context.Background(), b, &out, "0b1010", "0b1001000"); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	assertDeployOutput(t, out.String())
}

func TestRunDeployRejectsBadMask(t *testing.T) {
	var out bytes.Buffer
	err := runDeploy(context.Background(), memoryBuilder(t, nil), &out, "0bxyz", "0b1")
	if err == nil || !strings.Contains(err.Error(), "--mask") {
		t.Fatalf("expected --mask parse error, got %v", err)
	}
}
