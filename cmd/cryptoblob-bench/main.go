// Command cryptoblob-bench runs synthetic pack/unseal round trips
// against a generated directory tree and reports latency statistics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/tez-capital/cryptoblob"
	"github.com/tez-capital/cryptoblob/logging"
)

func main() {
	logCfg := logging.NewConfigFromEnv()
	if logCfg.File == "" {
		logCfg.File = logging.DefaultFileInExecDir("cryptoblob-bench.log")
	}
	if err := logging.EnsureDir(logCfg.File); err != nil {
		panic("could not create directory for log file")
	}
	l, _ := logging.New(logCfg)
	l.Info("logging to file", "path", logging.CurrentFile())

	const (
		tenants     = 8
		filesPerTen = 40
		fileSize    = 2048
		rounds      = 50
	)

	root, err := os.MkdirTemp("", "cryptoblob-bench-*")
	if err != nil {
		l.Error("mkdtemp", "err", err)
		os.Exit(1)
	}
	defer os.RemoveAll(root)

	if err := generateTree(root, tenants, filesPerTen, fileSize); err != nil {
		l.Error("generate tree", "err", err)
		os.Exit(1)
	}

	masterKey, err := cryptoblob.NewSymmetricKey()
	if err != nil {
		l.Error("new master key", "err", err)
		os.Exit(1)
	}

	packDurations := make([]time.Duration, 0, rounds)
	unsealDurations := make([]time.Duration, 0, rounds)

	var existing []cryptoblob.TenantKeys
	var maxID int32

	for i := 0; i < rounds; i++ {
		t0 := time.Now()
		result, err := cryptoblob.Pack(root, masterKey, existing, maxID)
		dt := time.Since(t0)
		if err != nil {
			l.Error("pack failed", "round", i, "err", err)
			continue
		}
		packDurations = append(packDurations, dt)
		existing = result.TenantsKeys
		maxID = result.Blob.MaxID

		t0 = time.Now()
		if _, err := cryptoblob.UnsealMaster(result.Blob, masterKey); err != nil {
			l.Error("unseal failed", "round", i, "err", err)
			continue
		}
		unsealDurations = append(unsealDurations, time.Since(t0))
	}

	report(l, "pack", packDurations)
	report(l, "unseal_master", unsealDurations)
}

func generateTree(root string, tenants, filesPerTenant, fileSize int) error {
	body := make([]byte, fileSize)
	for i := range body {
		body[i] = byte(i)
	}
	if err := os.MkdirAll(filepath.Join(root, "master"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(root, "master", "shared"), body, 0o644); err != nil {
		return err
	}
	for t := 0; t < tenants; t++ {
		dir := filepath.Join(root, "tenants", fmt.Sprintf("tenant-%02d", t))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for f := 0; f < filesPerTenant; f++ {
			content := append([]byte(nil), body...)
			content[0] = byte(t)
			content[1] = byte(f)
			if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("file-%03d", f)), content, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func report(l *slog.Logger, label string, durations []time.Duration) {
	if len(durations) == 0 {
		l.Warn("benchmark: no successful samples", "op", label)
		return
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	min := lo.Min(durations)
	max := lo.Max(durations)

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	avg := sum / time.Duration(len(durations))
	median := durations[len(durations)/2]

	l.Info("roundtrip benchmark",
		"op", label,
		"samples", len(durations),
		"min", min.String(),
		"max", max.String(),
		"avg", avg.String(),
		"median", median.String(),
	)
}
