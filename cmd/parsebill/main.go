// Command parsebill runs the rule-based parser and the synonym normalizer over
// invoice text files (or stdin) and prints the results as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/config"
	"github.com/erzulfequar/OCR-Backend/pkg/extraction"
	"github.com/erzulfequar/OCR-Backend/pkg/synonyms"
)

type output struct {
	File     string `json:"file"`
	Strategy string `json:"strategy,omitempty"`
	Raw      any    `json:"raw,omitempty"`
	Document any    `json:"document,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	synonymsFile := flag.String("synonyms", "", "YAML synonym table (default: built-in)")
	workers := flag.Int("workers", 4, "documents parsed concurrently")
	showRaw := flag.Bool("raw", false, "include the raw parser record")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [file ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	config.SetupLogging(*logLevel)
	log.SetOutput(os.Stderr)

	table := synonyms.DefaultTable()
	if *synonymsFile != "" {
		t, err := synonyms.LoadTable(*synonymsFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to load synonym table")
		}
		table = t
	}

	sources, err := readSources(flag.Args())
	if err != nil {
		log.WithError(err).Fatal("Failed to read input")
	}

	orchestrator := extraction.New([]extraction.Strategy{extraction.RulesStrategy{}}, extraction.WithTable(table))
	results := orchestrator.ProcessBatch(context.Background(), sources, *workers)

	outputs := make([]output, 0, len(results))
	failed := false
	for _, r := range results {
		o := output{File: r.Source.FileName}
		if r.Err != nil {
			o.Error = r.Err.Error()
			failed = true
		} else {
			o.Strategy = r.Result.Strategy
			o.Document = r.Result.Document
			if *showRaw {
				o.Raw = r.Result.Raw
			}
		}
		outputs = append(outputs, o)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outputs); err != nil {
		log.WithError(err).Fatal("Failed to write output")
	}
	if failed {
		os.Exit(1)
	}
}

func readSources(paths []string) ([]extraction.Source, error) {
	if len(paths) == 0 {
		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return []extraction.Source{{Text: string(text), FileName: "-"}}, nil
	}

	sources := make([]extraction.Source, 0, len(paths))
	for _, p := range paths {
		text, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", p, err)
		}
		sources = append(sources, extraction.Source{Text: string(text), FileName: p})
	}
	return sources, nil
}
