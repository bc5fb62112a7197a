// resolve is a one-shot CLI for the sports resolution pipeline. It takes a
// natural-language market question, runs the full deterministic pipeline,
// and prints the resolution as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
	"github.com/arbiterlab/sportsresolve/pkg/resolve"
	"github.com/arbiterlab/sportsresolve/tools"
)

var (
	query        = flag.String("q", "", "Market question to resolve (required)")
	withEvidence = flag.Bool("evidence", false, "Include the full evidence payload in the output")
	prettyLog    = flag.Bool("pretty-log", false, "Human-readable console logging on stderr")
)

func main() {
	godotenv.Load()
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *prettyLog {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "usage: resolve -q \"Did the Lakers beat the Suns on 2025-01-15?\"")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := []resolve.Option{}
	if cfg, ok := tools.FromEnv(); ok {
		opts = append(opts, resolve.WithAdvisor(advisor.New(tools.New(cfg)), cfg.Provider))
	}
	engine := resolve.NewEngine(providers.NewRegistry(), fetch.New(), opts...)

	res, err := engine.Resolve(context.Background(), *query)
	if err != nil {
		log.Error().Err(err).Msg("resolution failed")
		os.Exit(1)
	}

	var out any = res
	if !*withEvidence {
		out = struct {
			Resolution string   `json:"resolution"`
			Confidence float64  `json:"confidence"`
			Reasoning  string   `json:"reasoning"`
			Sources    []string `json:"sources,omitempty"`
		}{res.Resolution, res.Confidence, res.Reasoning, res.Sources}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("encoding result failed")
		os.Exit(1)
	}
	fmt.Println(string(b))
}
