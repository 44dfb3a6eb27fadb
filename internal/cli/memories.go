package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lethe-mem/lethe/internal/engine"
)

var (
	rememberPin    bool
	forgetCategory string
	forgetKey      string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <owner> <text...>",
	Short: "Ingest a text observation for an owner",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			owner := args[0]
			text := strings.Join(args[1:], " ")
			if err := eng.Ingest(ctx, owner, text, engine.IngestOptions{Pin: rememberPin}); err != nil {
				return err
			}
			fmt.Println("remembered")
			return nil
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <owner> [query...]",
	Short: "Build the ranked memory context block for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			owner := args[0]
			query := strings.Join(args[1:], " ")
			block, err := eng.BuildContext(ctx, owner, query)
			if err != nil {
				return err
			}
			if block == "" {
				fmt.Println("(no memories)")
				return nil
			}
			fmt.Println(block)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <owner>",
	Short: "Show memory counts for an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			stats, err := eng.Stats(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("total: %d (pinned: %d)\n", stats.Total, stats.PinnedCount)
			for cat, n := range stats.ByCategory {
				fmt.Printf("  %-16s %d\n", cat, n)
			}
			return nil
		})
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <owner>",
	Short: "Delete one memory, or an owner's entire memory set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			owner := args[0]
			if forgetCategory != "" || forgetKey != "" {
				found, err := eng.DeleteOne(ctx, owner, forgetCategory, forgetKey)
				if err != nil {
					return err
				}
				if !found {
					fmt.Println("not found")
					return nil
				}
				fmt.Println("forgotten")
				return nil
			}
			n, err := eng.ForgetAll(ctx, owner)
			if err != nil {
				return err
			}
			fmt.Printf("forgot %d memories\n", n)
			return nil
		})
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain <owner>",
	Short: "Run consolidation and retention for an owner now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			report, err := eng.RunMaintenance(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("promoted: %d  merged: %d  evicted: %d\n",
				report.Promoted, report.Merged, report.Eviction.Total())
			return nil
		})
	},
}

// withEngine opens the configured store, runs fn with a wired engine, and
// closes the store afterward.
func withEngine(fn func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fn(ctx, newEngine(cfg, st))
}

func init() {
	rememberCmd.Flags().BoolVar(&rememberPin, "pin", false, "Pin the memory permanently")
	forgetCmd.Flags().StringVarP(&forgetCategory, "category", "c", "", "Category of a single memory to forget")
	forgetCmd.Flags().StringVarP(&forgetKey, "key", "k", "", "Key of a single memory to forget")
}
