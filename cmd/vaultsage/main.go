// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// VaultSage answers questions over a personal Markdown vault with
// entity-evidence gating and inline citations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultsage/vaultsage/pkg/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vaultsage",
	Short: "Grounded question answering over a Markdown vault",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vaultsage.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
