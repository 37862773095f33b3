package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/repository"
	"github.com/noah-isme/sma-roster/internal/service"
	"github.com/noah-isme/sma-roster/pkg/config"
)

// Compares the backend roster with the configured mirror and exits non-zero when they drift.
// The mirror driver and its connection come from the same environment as the server; flags
// override the backend URL and the file mirror location.
func main() {
	var (
		baseURL   string
		mirrorDir string
		prefix    string
		timeout   time.Duration
		asJSON    bool
	)

	flag.StringVar(&baseURL, "base", "", "Roster backend base URL (default GATEWAY_BASE_URL)")
	flag.StringVar(&mirrorDir, "mirror-dir", "", "File mirror directory (default MIRROR_DIR)")
	flag.StringVar(&prefix, "prefix", "", "Mirror key prefix (default MIRROR_KEY_PREFIX)")
	flag.DurationVar(&timeout, "timeout", 0, "HTTP client timeout (default GATEWAY_TIMEOUT)")
	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if baseURL != "" {
		cfg.Gateway.BaseURL = baseURL
	}
	if mirrorDir != "" {
		cfg.Mirror.Dir = mirrorDir
	}
	if prefix != "" {
		cfg.Mirror.KeyPrefix = prefix
	}
	if timeout > 0 {
		cfg.Gateway.Timeout = timeout
	}
	timeout = cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logr := zap.NewNop()
	gateway := repository.NewRemoteRepository(cfg.Gateway, &http.Client{Timeout: timeout}, nil, logr)
	if !gateway.Configured() {
		log.Fatalf("backend base URL not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
	defer cancel()

	remote, err := gateway.ListStudents(ctx, models.StudentFilter{})
	if err != nil {
		log.Fatalf("backend request failed: %v", err)
	}
	backend, closeBackend, err := repository.OpenMirrorBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s mirror: %v", cfg.Mirror.Driver, err)
	}
	defer closeBackend()
	mirror := repository.NewMirrorRepository(backend, cfg.Mirror.KeyPrefix, logr)
	snapshot, err := mirror.Load(ctx)
	if err != nil {
		log.Fatalf("mirror read failed: %v", err)
	}

	report := service.DiffStudents(remote, snapshot.Students)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("encode report: %v", err)
		}
	} else {
		printReport(report)
	}

	if !report.InSync() {
		closeBackend()
		os.Exit(1)
	}
}

func printReport(report service.MirrorDiffReport) {
	fmt.Println("Mirror diff report")
	fmt.Println("==================")
	for _, s := range report.OnlyRemote {
		fmt.Printf("[REMOTE ONLY] %d %s\n", s.ID, s.Name)
	}
	for _, s := range report.OnlyLocal {
		fmt.Printf("[LOCAL ONLY ] %d %s\n", s.ID, s.Name)
	}
	for _, d := range report.Changed {
		fmt.Printf("[CHANGED    ] %d remote=%q local=%q\n", d.ID, d.Remote.Name, d.Local.Name)
	}
	fmt.Printf("Matching: %d, Remote only: %d, Local only: %d, Changed: %d\n",
		report.Matching, len(report.OnlyRemote), len(report.OnlyLocal), len(report.Changed))
}
