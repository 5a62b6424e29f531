package main

import (
	"fmt"

	"github.com/fatih/color"

	"snapify/internal/config"
)

func printSignature(cfg *config.Config) {
	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	white := color.New(color.FgWhite).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	fmt.Println()
	fmt.Printf("  %s %s\n", cyan(cfg.App.Name), dim("v"+cfg.App.Version))
	fmt.Printf("  %s : %s\n", cyan("Environment"), white(cfg.Server.Env))
	fmt.Printf("  %s : %s %s\n", cyan("Storage    "), white(cfg.Storage.Driver), dim(cfg.Storage.Bucket))
	fmt.Printf("  %s : %s\n", cyan("Database   "), white(cfg.Database.Path))
	fmt.Printf("  %s : %s\n", cyan("Workers    "), white(fmt.Sprintf("%d transcode", cfg.Transcode.Workers)))
	fmt.Println()
}
