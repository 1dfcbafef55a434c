package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/notification"
	"github.com/vanshika/paybridge/internal/reconcile"
	"github.com/vanshika/paybridge/internal/service"
	"github.com/vanshika/paybridge/internal/trigger"
)

const timeLayout = time.RFC3339Nano

func newInitiateCmd(a *app) *cobra.Command {
	var (
		id       string
		amount   string
		currency string
	)
	cmd := &cobra.Command{
		Use:   "initiate",
		Short: "Register a new PENDING transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			tx, err := service.NewPaymentService(a.store, a.logger).Initiate(cmd.Context(), service.InitiateInput{
				TransactionID: id,
				Amount:        value,
				Currency:      currency,
			})
			if err != nil {
				return err
			}
			return printTransaction(cmd.OutOrStdout(), tx)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "transaction id (generated when empty)")
	cmd.Flags().StringVar(&amount, "amount", "", "payment amount")
	cmd.Flags().StringVar(&currency, "currency", "", "3-letter currency code")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("currency")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Initiate every transaction listed in a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := loadImportFile(args[0])
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("%s: no transactions listed", args[0])
			}

			start := time.Now()
			a.logger.Info("importing transactions", "count", len(inputs), "workers", workers)
			svc := service.NewPaymentService(a.store, a.logger)
			report, err := service.NewBulkImporter(svc, workers).Import(cmd.Context(), inputs)
			a.logger.Info("import finished",
				"created", report.Created,
				"skipped", report.Skipped,
				"duration", time.Since(start).String(),
			)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created=%d skipped=%d\n", report.Created, report.Skipped)
			return err
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent workers")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <transactionId>",
		Short: "Print the stored record for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := service.NewPaymentService(a.store, a.logger).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTransaction(cmd.OutOrStdout(), tx)
		},
	}
}

// replay re-applies a notification after a lost upstream callback.
func newReplayCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "replay <transactionId>",
		Short: "Apply a payment notification by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reported, err := notification.ParseStatus(status)
			if err != nil {
				return err
			}
			claims, err := trigger.Open(a.cfg.Broker, a.logger)
			if err != nil {
				return fmt.Errorf("open trigger: %w", err)
			}
			defer claims.Close()

			n, err := notification.NewNormalizer().FromQuery(url.Values{
				"transactionId": {args[0]},
				"status":        {string(reported)},
				"reference":     {"replay-" + args[0] + "-" + time.Now().UTC().Format("20060102T150405")},
			})
			if err != nil {
				return err
			}
			n.Source = domain.TransportReplay

			out, err := reconcile.NewEngine(a.store, claims, a.logger).Apply(cmd.Context(), n)
			if err != nil {
				return err
			}
			if out.TriggerErr != nil {
				a.logger.Warn("claim unlock delivery failed", "error", out.TriggerErr)
			}
			return printTransaction(cmd.OutOrStdout(), out.Transaction)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "reported status (success|failed and aliases)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
