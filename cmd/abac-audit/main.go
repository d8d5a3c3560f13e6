package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/abac"
	"github.com/oarkflow/abac/domains/edocument"
	"github.com/oarkflow/abac/domains/university"
	"github.com/oarkflow/abac/logger"
	"github.com/oarkflow/abac/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "analyze":
		handleAnalyze()
	case "convert":
		handleConvert()
	case "stats":
		handleStats()
	case "bench":
		handleBench()
	case "run":
		handleRun()
	case "load":
		handleLoad()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("abac-audit - policy enumeration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  abac-audit analyze <domain> <policy> [strategy] [maxUsers]  - Enumerate matches per rule")
	fmt.Println("  abac-audit convert <domain> <policy> <output.json>          - Convert policy text to JSON")
	fmt.Println("  abac-audit stats <domain> <policy>                          - Show policy statistics")
	fmt.Println("  abac-audit bench <domain> <policy> [maxUsers]               - Time and cross-check every strategy")
	fmt.Println("  abac-audit run <config>                                     - Run a configured analysis")
	fmt.Println("  abac-audit load <config> <name>                             - Print a stored policy document")
	fmt.Println()
	fmt.Println("Domains: university, edocument. Strategies:", abac.StrategyNames())
}

func fatalf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

// withDomain dispatches on the domain name; each vocabulary has its own
// attribute name and value types, so the work happens behind the closure.
func withDomain(domain string, uniFn func(*university.Parser), edocFn func(*edocument.Parser)) {
	switch domain {
	case "university":
		uniFn(university.NewParser())
	case "edocument":
		edocFn(edocument.NewParser())
	default:
		fatalf("Unknown domain: %s", domain)
	}
}

func handleAnalyze() {
	if len(os.Args) < 4 {
		fatalf("Usage: abac-audit analyze <domain> <policy> [strategy] [maxUsers]")
	}
	domain, path := os.Args[2], os.Args[3]
	strategyName := abac.StrategyOrdered
	if len(os.Args) > 4 {
		strategyName = os.Args[4]
	}
	maxUsers := 0
	if len(os.Args) > 5 {
		n, err := strconv.Atoi(os.Args[5])
		if err != nil {
			fatalf("Bad maxUsers: %v", err)
		}
		maxUsers = n
	}
	withDomain(domain,
		func(p *university.Parser) { analyze[university.AttributeName, university.Value](path, p, strategyName, maxUsers) },
		func(p *edocument.Parser) { analyze[edocument.AttributeName, edocument.Value](path, p, strategyName, maxUsers) })
}

func analyze[N comparable, V abac.Value[V]](path string, dom abac.DomainParser[N, V], strategyName string, maxUsers int) {
	policy, err := abac.ParsePolicyFile(path, dom)
	if err != nil {
		fatalf("Error parsing policy: %v", err)
	}
	strategy, err := abac.NewStrategy[N, V](strategyName)
	if err != nil {
		fatalf("Error: %v", err)
	}
	analyzer, err := abac.NewAnalyzer(strategy,
		abac.WithLogger[N, V](logger.New("phuslu", "info")),
		abac.WithMaxUsers[N, V](maxUsers))
	if err != nil {
		fatalf("Error: %v", err)
	}
	report, err := analyzer.AnalyzePolicy(policy)
	if err != nil {
		fatalf("Error analyzing policy: %v", err)
	}
	report.WriteStats(os.Stdout)
}

func handleConvert() {
	if len(os.Args) < 5 {
		fatalf("Usage: abac-audit convert <domain> <policy> <output.json>")
	}
	domain, input, output := os.Args[2], os.Args[3], os.Args[4]
	withDomain(domain,
		func(p *university.Parser) { convert[university.AttributeName, university.Value](input, output, p) },
		func(p *edocument.Parser) { convert[edocument.AttributeName, edocument.Value](input, output, p) })
	fmt.Printf("Converted %s -> %s\n", input, output)
}

func convert[N comparable, V abac.Value[V]](input, output string, dom abac.DomainParser[N, V]) {
	policy, err := abac.ParsePolicyFile(input, dom)
	if err != nil {
		fatalf("Error parsing policy: %v", err)
	}
	out, err := os.Create(output)
	if err != nil {
		fatalf("Error creating output: %v", err)
	}
	defer out.Close()
	if err := abac.WritePolicyJSON(out, policy); err != nil {
		fatalf("Error writing JSON: %v", err)
	}
}

func handleStats() {
	if len(os.Args) < 4 {
		fatalf("Usage: abac-audit stats <domain> <policy>")
	}
	domain, path := os.Args[2], os.Args[3]
	withDomain(domain,
		func(p *university.Parser) { stats[university.AttributeName, university.Value](path, p) },
		func(p *edocument.Parser) { stats[edocument.AttributeName, edocument.Value](path, p) })
}

func stats[N comparable, V abac.Value[V]](path string, dom abac.DomainParser[N, V]) {
	policy, err := abac.ParsePolicyFile(path, dom)
	if err != nil {
		fatalf("Error parsing policy: %v", err)
	}
	conditions := 0
	for i := range policy.Rules {
		conditions += policy.Rules[i].ConditionCount()
	}
	fmt.Printf("users=%d resources=%d rules=%d conditions=%d\n",
		len(policy.Users), len(policy.Resources), len(policy.Rules), conditions)
	for i := range policy.Rules {
		r := &policy.Rules[i]
		fmt.Printf("  rule %-3d user=%d resource=%d comparison=%d actions=%d\n",
			r.ID, len(r.UserConditions), len(r.ResourceConditions),
			len(r.ComparisonConditions), len(r.Actions))
	}
}

func handleBench() {
	if len(os.Args) < 4 {
		fatalf("Usage: abac-audit bench <domain> <policy> [maxUsers]")
	}
	domain, path := os.Args[2], os.Args[3]
	maxUsers := 0
	if len(os.Args) > 4 {
		n, err := strconv.Atoi(os.Args[4])
		if err != nil {
			fatalf("Bad maxUsers: %v", err)
		}
		maxUsers = n
	}
	withDomain(domain,
		func(p *university.Parser) { benchFile[university.AttributeName, university.Value](path, p, maxUsers) },
		func(p *edocument.Parser) { benchFile[edocument.AttributeName, edocument.Value](path, p, maxUsers) })
}

func benchFile[N comparable, V abac.Value[V]](path string, dom abac.DomainParser[N, V], maxUsers int) {
	policy, err := abac.ParsePolicyFile(path, dom)
	if err != nil {
		fatalf("Error parsing policy: %v", err)
	}
	if err := bench(os.Stdout, policy, maxUsers); err != nil {
		fatalf("Error: %v", err)
	}
}

// bench times every strategy over the whole policy and cross-checks their
// match counts against the naive baseline.
func bench[N comparable, V abac.Value[V]](w io.Writer, policy *abac.Policy[N, V], maxUsers int) error {
	baseline := -1
	for _, name := range abac.StrategyNames() {
		strategy, err := abac.NewStrategy[N, V](name)
		if err != nil {
			return err
		}
		start := time.Now()
		total := 0
		for i := range policy.Rules {
			n, err := abac.CountMatches(strategy, policy, &policy.Rules[i], maxUsers)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			total += n
		}
		fmt.Fprintf(w, "  %-10s matches=%-8d elapsed=%s\n", name, total, time.Since(start))
		if baseline < 0 {
			baseline = total
		} else if total != baseline {
			return fmt.Errorf("%s counted %d matches, naive counted %d", name, total, baseline)
		}
	}
	fmt.Fprintf(w, "  consistent: every strategy counted %d matches\n", baseline)
	return nil
}

func handleRun() {
	if len(os.Args) < 3 {
		fatalf("Usage: abac-audit run <config>")
	}
	cfg, err := abac.NewConfigLoader().LoadFile(os.Args[2])
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	withDomain(cfg.Domain,
		func(p *university.Parser) { run[university.AttributeName, university.Value](cfg, p) },
		func(p *edocument.Parser) { run[edocument.AttributeName, edocument.Value](cfg, p) })
}

func run[N comparable, V abac.Value[V]](cfg *abac.Config, dom abac.DomainParser[N, V]) {
	log := logger.New(cfg.Logging.Backend, cfg.Logging.Level)
	policy, err := abac.ParsePolicyFile(cfg.Policy, dom)
	if err != nil {
		fatalf("Error parsing policy: %v", err)
	}
	strategy, err := abac.NewConfiguredStrategy[N, V](cfg)
	if err != nil {
		fatalf("Error: %v", err)
	}
	analyzer, err := abac.NewAnalyzer(strategy,
		abac.WithLogger[N, V](log),
		abac.WithMaxUsers[N, V](cfg.MaxUsers),
		abac.WithEngineConfig[N, V](cfg.Engine))
	if err != nil {
		fatalf("Error: %v", err)
	}
	report, err := analyzer.AnalyzePolicy(policy)
	if err != nil {
		fatalf("Error analyzing policy: %v", err)
	}
	report.WriteStats(os.Stdout)

	store, cleanup, err := openStore(cfg.Store)
	if err != nil {
		fatalf("Error opening store: %v", err)
	}
	defer cleanup()
	if err := savePolicy(store, cfg, policy); err != nil {
		fatalf("Error saving policy: %v", err)
	}
	log.Info("policy document saved", "name", cfg.Policy, "driver", cfg.Store.Driver)
}

func savePolicy[N comparable, V abac.Value[V]](store stores.PolicyStore, cfg *abac.Config, policy *abac.Policy[N, V]) error {
	src, err := os.ReadFile(cfg.Policy)
	if err != nil {
		return err
	}
	var doc bytes.Buffer
	if err := abac.WritePolicyJSON(&doc, policy); err != nil {
		return err
	}
	rec := &stores.PolicyRecord{
		Name:     cfg.Policy,
		Domain:   cfg.Domain,
		Source:   string(src),
		Document: doc.Bytes(),
	}
	return store.Save(context.Background(), rec)
}

func handleLoad() {
	if len(os.Args) < 4 {
		fatalf("Usage: abac-audit load <config> <name>")
	}
	cfg, err := abac.NewConfigLoader().LoadFile(os.Args[2])
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	store, cleanup, err := openStore(cfg.Store)
	if err != nil {
		fatalf("Error opening store: %v", err)
	}
	defer cleanup()
	rec, err := store.Get(context.Background(), os.Args[3])
	if err != nil {
		fatalf("Error loading policy: %v", err)
	}
	os.Stdout.Write(rec.Document)
}

func openStore(cfg abac.StoreConfig) (stores.PolicyStore, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return stores.NewMemoryPolicyStore(), func() {}, nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "abac.db"
		}
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, err
		}
		db := squealx.NewDb(sqlDB, "sqlite", "abac")
		if err := stores.Migrate(db); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return stores.NewSQLPolicyStore(db), func() { sqlDB.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.DSN})
		return stores.NewRedisPolicyStore(client), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
}
