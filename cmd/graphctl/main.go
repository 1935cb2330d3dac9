// Command graphctl is the pipeline driver named in spec.md §6: `create`
// (ingest & build graph), `process` (dedupe + community + summarise),
// `picture` (attach external image URLs), `query` (interactive REPL over
// the retrievers). Grounded on the teacher's cmd/embedctl style: plain
// flag package, no subcommand framework, log.Fatalf on configuration
// errors (spec.md §7: "a full driver abort only occurs on configuration
// errors").
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stroke-graphrag/graphrag/internal/community"
	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/dedup"
	"github.com/stroke-graphrag/graphrag/internal/embedding"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/ingest"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
	"github.com/stroke-graphrag/graphrag/internal/picture"
	globalretrieve "github.com/stroke-graphrag/graphrag/internal/retrieve/global"
	localretrieve "github.com/stroke-graphrag/graphrag/internal/retrieve/local"
	"github.com/stroke-graphrag/graphrag/internal/summarize"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		runCreate(args)
	case "process":
		runProcess(args)
	case "picture":
		runPicture(args)
	case "query":
		runQuery(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: graphctl <create|process|picture|query> [flags]")
}

func bootstrap(ctx context.Context, configPath string) (graphstore.GraphDB, config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, false, os.Stderr)
	ctx = logging.WithContext(ctx, logger)

	pool, err := pgxpool.New(ctx, cfg.GraphDB.URI)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("connect graph db: %w", err)
	}

	var vec graphstore.VectorIndex
	if cfg.Vector.Enabled {
		vec, err = graphstore.NewQdrantIndex(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.APIKey, cfg.Embedding.Dims)
		if err != nil {
			pool.Close()
			return nil, cfg, nil, fmt.Errorf("connect vector index: %w", err)
		}
	}

	g, err := graphstore.NewPostgresGraph(ctx, pool, vec)
	if err != nil {
		pool.Close()
		return nil, cfg, nil, fmt.Errorf("init graph schema: %w", err)
	}

	return g, cfg, func() { pool.Close() }, nil
}

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	corpusDir := fs.String("corpus", "", "directory of .txt files to ingest")
	reset := fs.Bool("reset", false, "wipe the graph before ingesting")
	fs.Parse(args)

	if *corpusDir == "" {
		log.Fatal("create: -corpus is required")
	}

	ctx := context.Background()
	g, cfg, closeFn, err := bootstrap(ctx, *configPath)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	defer closeFn()

	if *reset {
		if err := g.Reset(ctx); err != nil {
			log.Fatalf("create: reset graph: %v", err)
		}
	}

	provider, err := llm.Build(cfg.LLM)
	if err != nil {
		log.Fatalf("create: %v", err)
	}

	if err := ingest.Corpus(ctx, g, provider, *corpusDir, cfg); err != nil {
		log.Fatalf("create: %v", err)
	}

	embedder, err := embedding.Build(cfg.Embedding)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	n, err := ingest.Embed(ctx, g, embedder)
	if err != nil {
		log.Fatalf("create: embed: %v", err)
	}
	log.Printf("create: embedded %d entities", n)
}

func runProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.Parse(args)

	ctx := context.Background()
	g, cfg, closeFn, err := bootstrap(ctx, *configPath)
	if err != nil {
		log.Fatalf("process: %v", err)
	}
	defer closeFn()

	provider, err := llm.Build(cfg.LLM)
	if err != nil {
		log.Fatalf("process: %v", err)
	}

	merged, err := dedup.Run(ctx, provider, g, cfg.Dedup)
	if err != nil {
		log.Fatalf("process: dedup: %v", err)
	}
	log.Printf("process: merged %d duplicate entities", merged)

	communities, err := community.Run(ctx, g)
	if err != nil {
		log.Fatalf("process: community: %v", err)
	}
	log.Printf("process: built %d communities", communities)

	summarized, err := summarize.Run(ctx, provider, g, cfg.Summarize)
	if err != nil {
		log.Fatalf("process: summarize: %v", err)
	}
	log.Printf("process: summarized %d communities", summarized)
}

func runPicture(args []string) {
	fs := flag.NewFlagSet("picture", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.Parse(args)

	ctx := context.Background()
	g, _, closeFn, err := bootstrap(ctx, *configPath)
	if err != nil {
		log.Fatalf("picture: %v", err)
	}
	defer closeFn()

	ids, err := g.AllEntityIDs(ctx)
	if err != nil {
		log.Fatalf("picture: %v", err)
	}

	lookup := picture.NewWikipediaLookup(nil)
	n, err := picture.Run(ctx, lookup, g, ids)
	if err != nil {
		log.Fatalf("picture: %v", err)
	}
	log.Printf("picture: attached %d image urls", n)
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.Parse(args)

	ctx := context.Background()
	g, cfg, closeFn, err := bootstrap(ctx, *configPath)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	defer closeFn()

	provider, err := llm.Build(cfg.LLM)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	embedder, err := embedding.Build(cfg.Embedding)
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	mode := "local"
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("graphctl query — type a question, or /mode local|global to switch, Ctrl-D to quit")
	for {
		fmt.Printf("[%s]> ", mode)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/mode ") {
			m := strings.TrimSpace(strings.TrimPrefix(line, "/mode "))
			if m == "local" || m == "global" {
				mode = m
			} else {
				fmt.Println("unknown mode:", m)
			}
			continue
		}

		var answer string
		var err error
		if mode == "global" {
			answer, err = globalretrieve.Answer(ctx, provider, g, cfg.Retrieve, 0, line)
		} else {
			answer, err = localretrieve.Answer(ctx, provider, embedder, g, cfg.Retrieve, line)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(answer)
	}
}
