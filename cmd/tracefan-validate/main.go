package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tracefan/tracefan/config"
	"github.com/tracefan/tracefan/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.VersionInfo())
		return
	}

	if len(flag.Args()) < 1 {
		fmt.Println("Error: Config file path is required")
		fmt.Println("Usage: tracefan-validate <config-file>")
		os.Exit(1)
	}
	configPath := flag.Args()[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	summarize(cfg)
	fmt.Println("Configuration is valid!")
}

func summarize(cfg *config.Config) {
	fmt.Printf("Level:    %s\n", cfg.Level)
	fmt.Printf("Format:   %s\n", cfg.Format)
	enabled := 0
	for _, h := range cfg.Handlers {
		if h.Enabled == nil || *h.Enabled {
			enabled++
		}
	}
	fmt.Printf("Handlers: %d declared, %d enabled\n", len(cfg.Handlers), enabled)
	for _, h := range cfg.Handlers {
		state := "enabled"
		if h.Enabled != nil && !*h.Enabled {
			state = "disabled"
		}
		fmt.Printf("  - %s (type=%s, %s)\n", h.Name, h.Type, state)
	}
}
