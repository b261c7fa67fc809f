package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vespa-engine/vespa-sub013/config"
	"github.com/vespa-engine/vespa-sub013/manager"
	"github.com/vespa-engine/vespa-sub013/pkg/attrlog"
	"github.com/vespa-engine/vespa-sub013/types"
)

var (
	baseDir        string
	attributesPath string
	indexSchemaPath string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "attrctl",
	Short: "Inspect and maintain an attribute directory",
	Long:  "attrctl loads one sub-database's declared attributes and lets an operator check status, force a flush, or list on-disk snapshots.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&baseDir, "base", "b", "", "attribute directory root (required)")
	rootCmd.PersistentFlags().StringVar(&attributesPath, "attributes", "attributes.cfg", "path to attributes.cfg")
	rootCmd.PersistentFlags().StringVar(&indexSchemaPath, "indexschema", "indexschema.cfg", "path to indexschema.cfg")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
	_ = rootCmd.MarkPersistentFlagRequired("base")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(listSnapshotsCmd)
}

func openManager() (*manager.Manager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("attrctl: --base is required")
	}
	log := attrlog.New(os.Stderr, logLevel)

	idx, err := config.Load[config.IndexSchemaConfig](indexSchemaPath)
	if err != nil {
		log.Warn("no index schema loaded, proceeding with an empty one", "error", err)
	}

	attrsCfg, err := config.Load[config.AttributesConfig](attributesPath)
	if err != nil {
		return nil, fmt.Errorf("attrctl: load attributes config: %w", err)
	}

	m := manager.New(log, baseDir, idx)
	for _, entry := range attrsCfg.Attributes {
		cfg, err := entry.ToAttributeConfig()
		if err != nil {
			return nil, fmt.Errorf("attrctl: attribute %q: %w", entry.Name, err)
		}
		if err := m.Add(cfg, types.Serial(0)); err != nil {
			return nil, fmt.Errorf("attrctl: add %q: %w", entry.Name, err)
		}
	}
	return m, nil
}
