package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mriresample/pkg/config"
	"mriresample/pkg/resample"
)

func main() {
	configPath := flag.String("config", "mriresample.yaml", "YAML job configuration (defaults are used when missing)")
	inputDir := flag.String("input", "", "Directory containing the source slice stack (a synthetic phantom is used when empty)")
	outputDir := flag.String("output", "resampled", "Directory for results")
	mode := flag.String("mode", "vol2vol", "Resampling mode: vol2vol, vol2surf, surf2surf or roi")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: numCores from the config)")
	verbose := flag.Bool("verbose", false, "Log per-pass diagnostics to stderr")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Processing.NumCores = *workers
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.Output.Verbose {
		resample.SetLogWriters(os.Stderr, os.Stderr, nil)
	} else {
		resample.SetLogWriters(os.Stderr, nil, nil)
	}

	fmt.Println("================================")
	fmt.Println("MRI RESAMPLING: VOLUMES, SURFACES AND LABELS")
	fmt.Println("================================")

	j := &job{cfg: cfg, inputDir: *inputDir, outputDir: *outputDir}
	startTime := time.Now()
	if err := j.run(*mode); err != nil {
		log.Fatalf("Resampling failed: %v", err)
	}
	fmt.Printf("\nCompleted %s in %.2f seconds using %d workers\n",
		*mode, time.Since(startTime).Seconds(), cfg.Processing.NumCores)
	fmt.Printf("Results saved to: %s\n", *outputDir)
}
