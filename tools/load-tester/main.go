package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/classroll/internal/adapter/api/middleware"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the api server")
	classes := flag.String("classes", "263001234", "Comma separated class codes to request")
	date := flag.String("date", "", "Attendance date (YYYY-MM-DD); empty asks for today")
	secret := flag.String("jwt-secret", "", "JWT_SECRET of the target server")
	issuer := flag.String("jwt-issuer", "", "JWT_ISSUER of the target server")
	tenant := flag.String("tenant", "", "Tenant id placed in the token")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 50, "Requests per second limit")
	flag.Parse()

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		log.Fatalf("invalid -tenant: %v", err)
	}
	if *secret == "" {
		log.Fatal("-jwt-secret is required")
	}
	token, err := middleware.NewToken(*secret, *issuer, middleware.Principal{
		TenantID: tenantID,
		UserID:   uuid.New(),
		Role:     "load-tester",
	}, *duration+time.Minute)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	var targets []string
	for _, code := range strings.Split(*classes, ",") {
		if code = strings.TrimSpace(code); code == "" {
			continue
		}
		u := strings.TrimRight(*baseURL, "/") + "/classes/" + url.PathEscape(code) + "/attendance/data"
		if *date != "" {
			u += "?date=" + url.QueryEscape(*date)
		}
		targets = append(targets, u)
	}
	if len(targets) == 0 {
		log.Fatal("-classes is empty")
	}

	log.Printf("Starting load test on %d class(es) at %s", len(targets), *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	var mu sync.Mutex
	statuses := make(map[int]int64)
	var latencies []time.Duration

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 60 * time.Second,
			}

			for n := workerID; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, targets[n%len(targets)], nil)
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Authorization", "Bearer "+token)

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
						errorCount.Add(1)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				elapsed := time.Since(start)

				mu.Lock()
				statuses[resp.StatusCode]++
				latencies = append(latencies, elapsed)
				mu.Unlock()

				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	for code, count := range statuses {
		log.Printf("  status %d: %d", code, count)
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		log.Printf("Latency p50: %s, p95: %s, max: %s",
			latencies[len(latencies)/2],
			latencies[len(latencies)*95/100],
			latencies[len(latencies)-1])
	}
}
