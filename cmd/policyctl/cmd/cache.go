package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/policyforge/decisionengine/internal/adapter/outbound/artifact"
	"github.com/policyforge/decisionengine/internal/config"
	"github.com/policyforge/decisionengine/internal/service/compiler"
)

var cacheDir string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the precompiled policy artifact cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm <file>",
	Short: "Compile a policy document and populate the artifact cache",
	Long: `cache warm compiles the policy document at <file> and writes its
manifest (id, variable names, invariant names, compiled-at timestamp)
into the content-addressed artifact cache, without evaluating any
request. This command is the only writer of the index; decide does not
read it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		factory, err := compiler.Compile(doc)
		if err != nil {
			return fmt.Errorf("policy invalid: %w", err)
		}

		cfg, err := config.LoadConfigForPolicy(args[0])
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dir := cacheDir
		if !cmd.Flags().Changed("dir") && cfg.Cache.Dir != "" {
			dir = cfg.Cache.Dir
		}

		cache, err := artifact.Open(dir)
		if err != nil {
			return fmt.Errorf("open artifact cache: %w", err)
		}
		defer cache.Close()

		_, meta, err := factory.Build(nil, "")
		if err != nil {
			return fmt.Errorf("build solver problem for manifest: %w", err)
		}

		manifest := artifact.Manifest{
			ID:            factory.PolicyID(),
			ContentHash:   factory.ContentHash(),
			Variables:     meta.Vars,
			Invariants:    meta.Invariants,
			CompiledAtRFC: time.Now().UTC().Format(time.RFC3339),
		}

		ctx := context.Background()
		if err := cache.Put(ctx, manifest); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}
		fmt.Printf("warmed %s -> %s/%s\n", factory.PolicyID(), dir, factory.ContentHash())
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "dir", ".policyforge-cache", "artifact cache root directory")
	cacheCmd.AddCommand(cacheWarmCmd)
	rootCmd.AddCommand(cacheCmd)
}
