package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/factory"
	"go.uber.org/zap"
)

type options struct {
	configPath   string
	backend      string
	leadCount    int
	agentCount   int
	tagsPerLead  int
	purge        bool
	seed         int64
	seedProvided bool
}

func main() {
	log.SetFlags(0)

	opts := parseFlags()
	ctx := context.Background()

	cfg, err := formakv.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
	}
	logger, err := formakv.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	registry, err := factory.NewRegistryWithConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer registry.Store().Close()

	agents, leads, err := defineModels(registry)
	if err != nil {
		log.Fatalf("failed to define models: %v", err)
	}

	if !opts.seedProvided {
		opts.seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(opts.seed))
	log.Printf("seed=%d backend=%s leads=%d agents=%d", opts.seed, cfg.Store.Backend, opts.leadCount, opts.agentCount)

	report, err := run(ctx, agents, leads, rng, opts)
	if err != nil {
		log.Fatalf("benchmark failed: %v", err)
	}
	report.print(os.Stdout)
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config file")
	flag.StringVar(&opts.backend, "backend", "", "override store.backend (memory, redis, postgres)")
	flag.IntVar(&opts.leadCount, "leads", 1000, "number of lead instances to save and reload")
	flag.IntVar(&opts.agentCount, "agents", 20, "number of agents leads reference")
	flag.IntVar(&opts.tagsPerLead, "tags", 3, "list elements per lead")
	flag.BoolVar(&opts.purge, "purge", true, "delete generated instances when done")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed (default: current time)")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.seedProvided = true
		}
	})
	if opts.leadCount <= 0 || opts.agentCount <= 0 {
		log.Fatalf("leads and agents must be positive")
	}
	return opts
}

func defineModels(registry *formakv.Registry) (agents, leads *formakv.Model, err error) {
	agents, err = registry.Define("Agent",
		formakv.NewStringField("name", formakv.Required()),
		formakv.NewStringField("region"),
	)
	if err != nil {
		return nil, nil, err
	}
	leads, err = registry.Define("Lead",
		formakv.NewStringField("email", formakv.Required()),
		formakv.NewIntegerField("score"),
		formakv.NewFloatField("budget"),
		formakv.NewBooleanField("qualified"),
		formakv.NewDateTimeField("created_at", formakv.AutoNowAdd()),
		formakv.NewDateField("follow_up"),
		formakv.NewListField("tags", formakv.Of(formakv.ValueTypeString)),
		formakv.NewReferenceField("agent", formakv.ModelOf(agents)),
	)
	if err != nil {
		return nil, nil, err
	}
	return agents, leads, nil
}

var (
	regions = []string{"north", "south", "east", "west"}
	tagPool = []string{"inbound", "referral", "enterprise", "smb", "trial", "renewal", "partner", "event"}
)

type phase struct {
	name      string
	count     int
	latencies []time.Duration
	total     time.Duration
}

func (p *phase) observe(d time.Duration) {
	p.count++
	p.latencies = append(p.latencies, d)
	p.total += d
}

func (p *phase) percentile(q float64) time.Duration {
	if len(p.latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), p.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

type report struct {
	phases []*phase
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "%-8s %8s %12s %10s %10s %10s\n", "phase", "ops", "ops/s", "p50", "p95", "p99")
	for _, p := range r.phases {
		rate := 0.0
		if p.total > 0 {
			rate = float64(p.count) / p.total.Seconds()
		}
		fmt.Fprintf(w, "%-8s %8d %12.1f %10s %10s %10s\n", p.name, p.count, rate,
			p.percentile(0.50), p.percentile(0.95), p.percentile(0.99))
	}
}

func run(ctx context.Context, agents, leads *formakv.Model, rng *rand.Rand, opts options) (*report, error) {
	saves := &phase{name: "save"}
	loads := &phase{name: "load"}
	deletes := &phase{name: "delete"}

	agentList := make([]*formakv.Instance, 0, opts.agentCount)
	for i := 0; i < opts.agentCount; i++ {
		a := agents.New()
		if err := setAll(a, map[string]any{
			"name":   fmt.Sprintf("agent-%03d", i),
			"region": regions[rng.Intn(len(regions))],
		}); err != nil {
			return nil, err
		}
		if err := a.Save(ctx); err != nil {
			return nil, fmt.Errorf("save agent %d: %w", i, err)
		}
		agentList = append(agentList, a)
	}

	ids := make([]string, 0, opts.leadCount)
	for i := 0; i < opts.leadCount; i++ {
		lead := leads.New()
		if err := setAll(lead, randomLead(rng, i, opts.tagsPerLead, agentList)); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := lead.Save(ctx); err != nil {
			return nil, fmt.Errorf("save lead %d: %w", i, err)
		}
		saves.observe(time.Since(start))
		ids = append(ids, lead.ID())
	}

	for _, id := range ids {
		start := time.Now()
		lead, err := leads.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if lead == nil {
			return nil, fmt.Errorf("lead %s vanished", id)
		}
		if _, err := lead.ToDocument(ctx); err != nil {
			return nil, fmt.Errorf("load lead %s: %w", id, err)
		}
		loads.observe(time.Since(start))
	}

	if opts.purge {
		for _, id := range ids {
			start := time.Now()
			lead, err := leads.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if lead == nil {
				continue
			}
			if err := lead.Delete(ctx); err != nil {
				return nil, fmt.Errorf("delete lead %s: %w", id, err)
			}
			deletes.observe(time.Since(start))
		}
		for _, a := range agentList {
			if err := a.Delete(ctx); err != nil {
				return nil, fmt.Errorf("delete agent %s: %w", a.ID(), err)
			}
		}
	}

	return &report{phases: []*phase{saves, loads, deletes}}, nil
}

func randomLead(rng *rand.Rand, i, tagCount int, agents []*formakv.Instance) map[string]any {
	tags := make([]any, 0, tagCount)
	for j := 0; j < tagCount; j++ {
		tags = append(tags, tagPool[rng.Intn(len(tagPool))])
	}
	return map[string]any{
		"email":     fmt.Sprintf("lead-%06d@example.com", i),
		"score":     rng.Intn(100),
		"budget":    float64(rng.Intn(1_000_000)) / 100,
		"qualified": rng.Intn(2) == 1,
		"follow_up": time.Now().AddDate(0, 0, rng.Intn(30)),
		"tags":      tags,
		"agent":     agents[rng.Intn(len(agents))],
	}
}

func setAll(inst *formakv.Instance, values map[string]any) error {
	for name, v := range values {
		if err := inst.Set(name, v); err != nil {
			return fmt.Errorf("set %s.%s: %w", inst.Model().Name(), name, err)
		}
	}
	return nil
}
