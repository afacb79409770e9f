package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 20
	testDuration = 10 * time.Second
	numProjects  = 12
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== juju Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Projects: %d\n\n", numWorkers, testDuration, numProjects)

	fmt.Print("Waiting for server... ")
	if !waitForServer() {
		fmt.Println("FAILED: server not responding")
		return
	}
	fmt.Println("OK")

	projects, err := seedProjects()
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return
	}

	// Phase 1: every request appends a session, each one invalidates an aggregate
	fmt.Println("\n--- Phase 1: Writing sessions (POST /sessions) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doCreateSession(rng, projects)
	})

	// Phase 2: aggregates are recomputed between writes
	fmt.Println("\n--- Phase 2: Mixed load (30% POST, 70% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.30:
			return doCreateSession(rng, projects)
		case r < 0.60:
			return doGetAggregate(rng, projects)
		case r < 0.80:
			return doGetDay(rng)
		default:
			return doGetByProject(rng, projects)
		}
	})

	// Phase 3: cached aggregates only
	fmt.Println("\n--- Phase 3: Aggregate reads (GET /aggregate) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doGetAggregate(rng, projects)
	})
}

func waitForServer() bool {
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func seedProjects() ([]string, error) {
	ids := make([]string, 0, numProjects)
	for i := 0; i < numProjects; i++ {
		data, _ := json.Marshal(map[string]string{"name": fmt.Sprintf("Load project %d", i+1)})
		resp, err := httpClient.Post(baseURL+"/projects", "application/json", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		var created struct {
			ID string `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&created)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("creating project: status %d", resp.StatusCode)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var totalOps atomic.Int64

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		seed := rand.Int63() + int64(i)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				results <- workFn(rng)
				totalOps.Inc()
			}
			return nil
		})
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	_ = g.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-24s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 90))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-24s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		return
	}
	fmt.Println("  " + strings.Repeat("-", 90))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

// randomInterval picks a start in 2024 and a length of 5 minutes to 3 hours,
// so some sessions cross midnight.
func randomInterval(rng *rand.Rand) (time.Time, time.Time) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, rng.Intn(366))
	start := day.Add(time.Duration(rng.Intn(24*60)) * time.Minute)
	return start, start.Add(time.Duration(5+rng.Intn(175)) * time.Minute)
}

func doCreateSession(rng *rand.Rand, projects []string) result {
	start, end := randomInterval(rng)
	body := map[string]interface{}{
		"project_id": projects[rng.Intn(len(projects))],
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"notes":      "load",
	}
	data, _ := json.Marshal(body)
	return send("POST /sessions", http.StatusCreated, func() (*http.Response, error) {
		return httpClient.Post(baseURL+"/sessions", "application/json", bytes.NewReader(data))
	})
}

func doGetAggregate(rng *rand.Rand, projects []string) result {
	url := fmt.Sprintf("%s/aggregate?project=%s", baseURL, projects[rng.Intn(len(projects))])
	return send("GET /aggregate", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(url)
	})
}

func doGetDay(rng *rand.Rand) result {
	start, _ := randomInterval(rng)
	day := start.Format("2006-01-02")
	url := fmt.Sprintf("%s/sessions?from=%s&to=%s", baseURL, day, day)
	return send("GET /sessions", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(url)
	})
}

func doGetByProject(rng *rand.Rand, projects []string) result {
	url := fmt.Sprintf("%s/sessions/project?id=%s", baseURL, projects[rng.Intn(len(projects))])
	return send("GET /sessions/project", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(url)
	})
}

func send(endpoint string, want int, do func() (*http.Response, error)) result {
	start := time.Now()
	resp, err := do()
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != want}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
