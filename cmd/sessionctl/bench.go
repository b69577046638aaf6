package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	otelexport "github.com/MrEthical07/storeAuth/metrics/export/otel"
	"github.com/MrEthical07/storeAuth/session"
	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	var (
		sessions    = fs.Int("sessions", 10000, "number of sessions to seed")
		concurrency = fs.Int("concurrency", 64, "number of concurrent workers")
		ops         = fs.Int("ops", 50000, "operations per phase (check + login/logout)")
		redisAddr   = fs.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = fs.String("prefix", "bench", "session key prefix")
		idle        = fs.Duration("idle", 0, "manager idle timeout; 0 restores from redis on every acquire")
		showMetrics = fs.Bool("metrics", true, "print counters collected through OpenTelemetry")
	)
	_ = fs.Parse(args)

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		return errors.New("sessions, concurrency, and ops must be > 0")
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := storeAuth.DefaultConfig()
	cfg.Session.RedisPrefix = *prefix
	cfg.Session.TTL = time.Hour
	cfg.Session.ManagerIdleTimeout = *idle
	cfg.Login.Throttle = false

	provider, err := storeAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		return err
	}
	defer provider.Close()

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = meterProvider.Shutdown(ctx) }()
	exporter, err := otelexport.NewExporter(meterProvider.Meter("sessionctl"), provider)
	if err != nil {
		return err
	}
	defer exporter.Close()

	tokens := make([]string, len(storeAuth.Roles))
	for i, role := range storeAuth.Roles {
		if tokens[i], err = benchToken(role); err != nil {
			return err
		}
	}

	scopes := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range scopes {
		scopes[i] = fmt.Sprintf("bench-%d", i)
		store, err := provider.Store(scopes[i])
		if err != nil {
			return err
		}
		sess := session.Session{Token: tokens[i%len(tokens)], Username: fmt.Sprintf("user-%d", i)}
		if err := store.Persist(ctx, sess); err != nil {
			return fmt.Errorf("persist failed: %w", err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	checkStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		return checkOnce(ctx, provider, scopes[r.Intn(len(scopes))])
	})
	cycleStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		return cycleOnce(ctx, provider, fmt.Sprintf("bench-cycle-%d", i), tokens[r.Intn(len(tokens))])
	})

	fmt.Println("---- results ----")
	printStats("check", checkStats)
	printStats("login/logout", cycleStats)

	if *showMetrics {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			return fmt.Errorf("collect metrics: %w", err)
		}
		fmt.Println("---- metrics ----")
		printMetrics(rm)
	}
	return nil
}

func checkOnce(ctx context.Context, provider *storeAuth.Provider, scope string) error {
	m, release, err := provider.Acquire(ctx, scope)
	if err != nil {
		return err
	}
	defer release()
	if snap := m.CheckAuthStatus(ctx); !snap.Authenticated() {
		return fmt.Errorf("%s: expected an authenticated session", scope)
	}
	return nil
}

func cycleOnce(ctx context.Context, provider *storeAuth.Provider, scope, token string) error {
	m, release, err := provider.Acquire(ctx, scope)
	if err != nil {
		return err
	}
	defer release()
	if _, err := m.Login(ctx, token, "bench", "", storeAuth.Profile{}); err != nil {
		return err
	}
	_, err = m.Logout(ctx)
	return err
}

// benchToken signs a throwaway token; the session layer never verifies signatures.
func benchToken(role storeAuth.Role) (string, error) {
	claims := gjwt.MapClaims{
		"sub":  "bench",
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("sessionctl-bench"))
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printMetrics(rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if dp.Value > 0 {
						fmt.Printf("%s %d\n", m.Name, dp.Value)
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if attrs := dp.Attributes.Encoded(attribute.DefaultEncoder()); attrs != "" {
						fmt.Printf("%s{%s} %d\n", m.Name, attrs, dp.Value)
						continue
					}
					fmt.Printf("%s %d\n", m.Name, dp.Value)
				}
			}
		}
	}
}
