package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type counters struct {
	reads, writes, degraded, errors atomic.Int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8082", "Base URL of the menu service")
	restaurantID := flag.String("restaurant", "", "Restaurant to load (required)")
	categoryID := flag.String("category", "", "Category new items are created in (required)")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	writeRatio := flag.Float64("writes", 0.2, "Fraction of requests that mutate the menu")
	flag.Parse()

	if *restaurantID == "" || *categoryID == "" {
		log.Fatal("-restaurant and -category are required")
	}

	log.Printf("Starting load test on %s (restaurant %s)", *baseURL, *restaurantID)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Writes: %.0f%%", *concurrency, *duration, *rps, *writeRatio*100)

	var wg sync.WaitGroup
	var c counters
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)
	client := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			var itemID string
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				var req *http.Request
				if rand.Float64() < *writeRatio {
					req = writeRequest(ctx, *baseURL, *restaurantID, *categoryID, workerID, itemID)
				} else {
					req, _ = http.NewRequestWithContext(ctx, http.MethodGet,
						fmt.Sprintf("%s/restaurants/%s/menu", *baseURL, *restaurantID), nil)
				}

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					c.errors.Add(1)
					continue
				}
				if id := record(&c, req, resp); id != "" {
					itemID = id
				}
			}
		}(i)
	}

	wg.Wait()

	total := c.reads.Load() + c.writes.Load() + c.errors.Load()
	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", total)
	log.Printf("Reads: %d, Writes: %d (degraded: %d)", c.reads.Load(), c.writes.Load(), c.degraded.Load())
	log.Printf("Errors: %d", c.errors.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
}

// writeRequest creates a menu item, or toggles the availability of the last
// item this worker created.
func writeRequest(ctx context.Context, baseURL, restaurantID, categoryID string, workerID int, itemID string) *http.Request {
	if itemID != "" && rand.IntN(2) == 0 {
		body := fmt.Sprintf(`{"isAvailable":%t}`, rand.IntN(2) == 0)
		req, _ := http.NewRequestWithContext(ctx, http.MethodPatch,
			fmt.Sprintf("%s/items/%s/availability", baseURL, itemID), bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	body, _ := json.Marshal(map[string]any{
		"categoryId": categoryID,
		"name":       fmt.Sprintf("load-test dish %d-%s", workerID, uuid.NewString()[:8]),
		"price":      float64(rand.IntN(3000)+100) / 100,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/restaurants/%s/items", baseURL, restaurantID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func record(c *counters, req *http.Request, resp *http.Response) string {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, resp.Body)
		c.errors.Add(1)
		return ""
	}
	if req.Method == http.MethodGet {
		io.Copy(io.Discard, resp.Body)
		c.reads.Add(1)
		return ""
	}

	c.writes.Add(1)
	if resp.Header.Get("X-Mutation-State") == "degraded" {
		c.degraded.Add(1)
	}
	if req.Method != http.MethodPost {
		io.Copy(io.Discard, resp.Body)
		return ""
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return ""
	}
	return created.ID
}
