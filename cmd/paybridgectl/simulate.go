package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/generator"
	"github.com/vanshika/paybridge/internal/notification"
	"github.com/vanshika/paybridge/internal/reconcile"
	"github.com/vanshika/paybridge/internal/service"
	"github.com/vanshika/paybridge/internal/trigger"
)

const annotationNoStore = "paybridgectl/no-store"

func newGenerateCmd(a *app) *cobra.Command {
	cfg := generator.DefaultConfig()
	var (
		currencies string
		output     string
	)
	cmd := &cobra.Command{
		Use:         "generate",
		Short:       "Write a synthetic dataset of payments and callbacks",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoStore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Currencies = splitCSV(currencies)
			dataset, err := generator.New(cfg).Generate(cmd.Context())
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}
			if output == "" || output == "-" {
				return generator.WriteDataset(dataset, cmd.OutOrStdout())
			}
			if err := generator.WriteDatasetFile(dataset, output); err != nil {
				return err
			}
			a.logger.Info("dataset written",
				"path", output,
				"transactions", len(dataset.Transactions),
				"callbacks", len(dataset.Callbacks),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.NumTransactions, "transactions", cfg.NumTransactions, "number of payments to generate")
	cmd.Flags().StringVar(&currencies, "currencies", strings.Join(cfg.Currencies, ","), "comma-separated currency codes")
	cmd.Flags().Float64Var(&cfg.FailureChance, "failure-chance", cfg.FailureChance, "probability a payment fails")
	cmd.Flags().Float64Var(&cfg.DuplicateChance, "duplicate-chance", cfg.DuplicateChance, "probability a verdict is redelivered")
	cmd.Flags().Float64Var(&cfg.ContradictionChance, "contradiction-chance", cfg.ContradictionChance, "probability of a late opposite verdict")
	cmd.Flags().Float64Var(&cfg.SilentChance, "silent-chance", cfg.SilentChance, "probability a payment never gets a callback")
	cmd.Flags().IntVar(&cfg.UnknownCallbacks, "unknown-callbacks", cfg.UnknownCallbacks, "callbacks for ids that were never initiated")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for deterministic generation")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func newSimulateCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Initiate a dataset's payments and deliver its callbacks concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			notifications, err := toNotifications(notification.NewNormalizer(), file.Callbacks)
			if err != nil {
				return err
			}

			claims, err := trigger.Open(a.cfg.Broker, a.logger)
			if err != nil {
				return fmt.Errorf("open trigger: %w", err)
			}
			defer claims.Close()

			start := time.Now()
			bulk := service.NewBulkImporter(service.NewPaymentService(a.store, a.logger), workers)
			imported, err := bulk.Import(cmd.Context(), file.inputs())
			if err != nil {
				return err
			}
			replayed, err := bulk.Replay(cmd.Context(), reconcile.NewEngine(a.store, claims, a.logger), notifications)
			if err != nil {
				return err
			}
			a.logger.Info("simulation finished", "duration", time.Since(start).String())

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"created=%d skipped=%d applied=%d duplicate=%d contradicted=%d unknown=%d\n",
				imported.Created, imported.Skipped,
				replayed.Applied, replayed.Duplicate, replayed.Contradicted, replayed.Unknown,
			)
			return err
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent workers")
	return cmd
}

// toNotifications runs recorded callbacks through the transport their
// delivery used, so aliases and validation match live traffic.
func toNotifications(n *notification.Normalizer, callbacks []importCallback) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0, len(callbacks))
	for i, cb := range callbacks {
		var (
			note domain.Notification
			err  error
		)
		switch domain.Transport(strings.ToLower(cb.Transport)) {
		case domain.TransportGet:
			note, err = n.FromQuery(url.Values{
				"transactionId": {cb.TransactionID},
				"status":        {cb.Status},
			})
		case domain.TransportPost, "":
			var body []byte
			body, err = json.Marshal(map[string]string{
				"transactionId": cb.TransactionID,
				"status":        cb.Status,
			})
			if err == nil {
				note, err = n.FromJSON(body)
			}
		default:
			err = fmt.Errorf("unknown transport %q", cb.Transport)
		}
		if err != nil {
			return nil, fmt.Errorf("callback %d: %w", i, err)
		}
		out = append(out, note)
	}
	return out, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
