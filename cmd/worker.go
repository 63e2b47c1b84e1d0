package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star4ce/star4ce-backend/internal/billing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers without the HTTP server",
	Long:  `Run the billing reconcile and account cleanup loops as a standalone process.`,
	Run: func(cmd *cobra.Command, args []string) {
		startWorkers()
	},
}

var reconcileInterval time.Duration

func startWorkers() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go runReconcileWorker(ctx, deps)
	go runCleanupWorker(ctx, deps)

	deps.Logger.Info("workers running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	deps.Logger.Info("received signal, shutting down workers", "signal", sig)
	cancel()
	deps.BillingClient.Shutdown()
	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("database close error", "error", err)
	}
}

// runReconcileWorker periodically re-fetches provider state for every
// dealership that has a billing subscription, and expires lapsed trials.
// Results come back through the billing client's status handler.
func runReconcileWorker(ctx context.Context, deps *Dependencies) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := deps.SubService.ExpireLapsedTrials(ctx)
			if err != nil {
				deps.Logger.Error("trial expiry sweep failed", "error", err)
			} else if expired > 0 {
				deps.Logger.Info("expired lapsed trials", "count", expired)
			}

			dealerships, err := deps.SubService.ListForReconciliation()
			if err != nil {
				deps.Logger.Error("reconcile listing failed", "error", err)
				continue
			}
			for _, d := range dealerships {
				if d.BillingSubscriptionID == nil {
					continue
				}
				job := billing.ReconcileJob{
					DealershipID:   d.ID,
					SubscriptionID: *d.BillingSubscriptionID,
				}
				if err := deps.BillingClient.EnqueueReconcile(job); err != nil {
					deps.Logger.Warn("reconcile enqueue failed", "dealership_id", d.ID, "error", err)
				}
			}
		}
	}
}

// runCleanupWorker deletes unverified accounts past the configured age.
// Verification codes expire after an hour; account deletion is deliberately
// lazier so a slow user can re-request a code.
func runCleanupWorker(ctx context.Context, deps *Dependencies) {
	interval := deps.Config.Cleanup.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := deps.AuthService.CleanupUnverified(deps.Config.Cleanup.UnverifiedMaxAge)
			if err != nil {
				deps.Logger.Error("unverified account cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				deps.Logger.Info("removed unverified accounts", "count", deleted)
			}
		}
	}
}

func init() {
	workerCmd.Flags().DurationVar(&reconcileInterval, "reconcile-interval", 15*time.Minute, "How often to reconcile subscriptions against the billing provider")

	rootCmd.AddCommand(workerCmd)
}
