package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	//go:embed templates/grimoire.yaml
	configTemplate string
	//go:embed templates/schema.yaml
	schemaTemplate string
	//go:embed templates/items.dma
	entriesTemplate string
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new grimoire project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

func runInit(projectName string) error {
	entriesPath := filepath.Join("entries", "items.dma")
	for _, path := range []string{configFile, schemaFile, entriesPath} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	configContents := strings.Replace(configTemplate, "PROJECT", projectName, 1)
	if err := os.WriteFile(configFile, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}
	if err := os.WriteFile(schemaFile, []byte(schemaTemplate), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", schemaFile, err)
	}
	if err := os.MkdirAll(filepath.Dir(entriesPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(entriesPath), err)
	}
	if err := os.WriteFile(entriesPath, []byte(entriesTemplate), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", entriesPath, err)
	}
	if err := os.MkdirAll(".grimoire", 0o755); err != nil {
		return fmt.Errorf("creating .grimoire: %w", err)
	}

	return nil
}
