package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap/zapcore"

	"github.com/franckalain/nutriscan/internal/config"
	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/lookup"
	"github.com/franckalain/nutriscan/internal/models"
)

const (
	exitFound    = 0
	exitFailure  = 1
	exitNotFound = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.GetConfigPath(), "path to configuration file")
	asJSON := fs.Bool("json", false, "print the raw lookup result as JSON")
	verbose := fs.Bool("v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		fmt.Fprintln(stderr, "usage: lookup [-config path] [-json] [-v] <barcode>")
		return exitFailure
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load configuration:", err)
		return exitFailure
	}

	var log logger.ILogger = logger.NewNop()
	if *verbose {
		log = logger.NewConsoleLogger(zapcore.DebugLevel)
	}
	defer log.Sync()

	client := lookup.NewClient(cfg.Lookup.BaseURL, cfg.Timeout(), log, lookup.WithUserAgent(cfg.Lookup.UserAgent))
	result := client.Lookup(context.Background(), models.Barcode(strings.TrimSpace(fs.Arg(0))))

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printResult(stdout, result)
	}

	switch result.Status {
	case models.LookupFound:
		return exitFound
	case models.LookupNotFound:
		return exitNotFound
	default:
		return exitFailure
	}
}

func printResult(w io.Writer, result models.LookupResult) {
	if result.Status != models.LookupFound {
		color.New(color.FgRed).Fprintln(w, result.UserMessage())
		return
	}

	p := result.Product
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s\n", valueOr(p.DisplayName(), "(unnamed product)"))
	fmt.Fprintf(w, "Barcode:     %s\n", p.Code)
	if p.Brands != nil {
		fmt.Fprintf(w, "Brand:       %s\n", *p.Brands)
	}
	if p.IngredientsText != nil {
		fmt.Fprintf(w, "Ingredients: %s\n", *p.IngredientsText)
	}
	if p.ImageURL != nil {
		fmt.Fprintf(w, "Image:       %s\n", *p.ImageURL)
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Nutrition (per 100g / per serving)")
	for _, n := range models.DisplayNutrients {
		per100, ok100 := p.Nutriments.Per100g(n)
		perServing, okServing := p.Nutriments.PerServing(n)
		if !ok100 && !okServing {
			continue
		}
		fmt.Fprintf(w, "  %-14s %10s %10s %s\n", n, cell(per100, ok100), cell(perServing, okServing), p.Nutriments.Unit(n))
	}

	if len(p.NutrientLevels) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Nutrient levels")
		for _, n := range []string{models.NutrientFat, models.NutrientSaturatedFat, models.NutrientSugars, models.NutrientSalt} {
			level, ok := p.NutrientLevels[n]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %-14s ", n)
			levelColor(level).Fprintln(w, level)
		}
	}
}

func levelColor(level string) *color.Color {
	switch level {
	case "low":
		return color.New(color.FgGreen)
	case "moderate":
		return color.New(color.FgYellow)
	case "high":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func cell(v models.NutrientValue, ok bool) string {
	if !ok {
		return "-"
	}
	return v.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
