package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/client"
	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
)

const benchService = "bench"

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	failRatio   float64
)

// Metrics
var (
	totalFlows   uint64
	paid         uint64
	failed       uint64
	approved     uint64
	fail4xx      uint64
	fail5xx      uint64
	failOther    uint64
	totalLatency int64 // nanoseconds across completed flows
)

func main() {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Drive payment workflows against a running payment service",
		Long: `Workers loop until the duration elapses, each running one workflow per
iteration:

  payment      create a payment, then process or fail it
  application  apply for a payment, then approve the application

Results are printed as JSON.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&targetURL, "url", "http://localhost:8000", "payment service base URL")
	cmd.Flags().IntVar(&concurrency, "workers", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().StringVar(&workload, "workload", "payment", "workload type: payment | application")
	cmd.Flags().Float64Var(&failRatio, "fail-ratio", 0.1, "share of payments failed instead of processed")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if workload != "payment" && workload != "application" {
		return fmt.Errorf("unknown workload %q", workload)
	}
	pc := client.NewPaymentClient(targetURL, 5*time.Second)
	ctx := cmd.Context()

	_, err := pc.RegisterService(ctx, domain.ServiceDefinition{
		ServiceID: benchService, Name: "Benchmark Plan", BasePrice: decimal.NewFromInt(10),
	})
	if err != nil && !client.IsStatus(err, http.StatusConflict) {
		return fmt.Errorf("register benchmark service: %w", err)
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(ctx, &wg, pc, i, start)
	}
	wg.Wait()
	printResults(time.Since(start))
	return nil
}

func worker(ctx context.Context, wg *sync.WaitGroup, pc *client.PaymentClient, id int, start time.Time) {
	defer wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for n := 0; time.Since(start) < duration; n++ {
		user := fmt.Sprintf("bench-%d-%d", id, n)
		amount := decimal.NewFromInt(int64(rng.Intn(500) + 1))

		t0 := time.Now()
		var err error
		if workload == "application" {
			err = applicationFlow(ctx, pc, user, amount)
		} else {
			err = paymentFlow(ctx, pc, user, amount, rng.Float64() < failRatio)
		}
		atomic.AddUint64(&totalFlows, 1)
		if err != nil {
			record(err)
			continue
		}
		atomic.AddInt64(&totalLatency, int64(time.Since(t0)))
	}
}

func email(user string) string { return user + "@bench.example.com" }

func paymentFlow(ctx context.Context, pc *client.PaymentClient, user string, amount decimal.Decimal, fail bool) error {
	p, err := pc.CreatePayment(ctx, models.CreatePaymentRequest{
		ServiceID: benchService, Amount: amount, UserID: user, Email: email(user),
	})
	if err != nil {
		return err
	}
	if fail {
		if _, err := pc.FailPayment(ctx, p.PaymentID, "benchmark"); err != nil {
			return err
		}
		atomic.AddUint64(&failed, 1)
		return nil
	}
	if _, err := pc.ProcessPayment(ctx, p.PaymentID, ""); err != nil {
		return err
	}
	atomic.AddUint64(&paid, 1)
	return nil
}

func applicationFlow(ctx context.Context, pc *client.PaymentClient, user string, amount decimal.Decimal) error {
	a, err := pc.Apply(ctx, models.ApplyRequest{
		UserID: user, ServiceID: benchService, Amount: amount, Reason: "benchmark", Email: email(user),
	})
	if err != nil {
		return err
	}
	if _, err := pc.Approve(ctx, a.ApplicationID); err != nil {
		return err
	}
	atomic.AddUint64(&approved, 1)
	return nil
}

func record(err error) {
	var se *client.StatusError
	switch {
	case errors.As(err, &se) && se.Code >= 500:
		atomic.AddUint64(&fail5xx, 1)
	case errors.As(err, &se) && se.Code >= 400:
		atomic.AddUint64(&fail4xx, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalFlows)
	errs := atomic.LoadUint64(&fail4xx) + atomic.LoadUint64(&fail5xx) + atomic.LoadUint64(&failOther)
	ok := total - errs

	var avgMs, errorRate float64
	if ok > 0 {
		avgMs = float64(atomic.LoadInt64(&totalLatency)) / float64(ok) / float64(time.Millisecond)
	}
	if total > 0 {
		errorRate = float64(errs) / float64(total) * 100
	}

	results := map[string]any{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_flows":     total,
		"throughput_fps":  float64(total) / d.Seconds(),
		"avg_flow_ms":     avgMs,
		"payments_paid":   atomic.LoadUint64(&paid),
		"payments_failed": atomic.LoadUint64(&failed),
		"approvals":       atomic.LoadUint64(&approved),
		"errors_4xx":      atomic.LoadUint64(&fail4xx),
		"errors_5xx":      atomic.LoadUint64(&fail5xx),
		"errors_other":    atomic.LoadUint64(&failOther),
		"error_rate_pct":  errorRate,
	}

	// JSON for downstream plotting
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
