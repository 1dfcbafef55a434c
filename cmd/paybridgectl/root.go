package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/logging"
	"github.com/vanshika/paybridge/internal/repository"
)

// app carries the dependencies opened for a single command invocation.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     repository.Store
	openStore func(ctx context.Context, logger *slog.Logger, cfg config.Config) (repository.Store, error)
}

func newApp() *app {
	return &app{openStore: repository.Open}
}

// execute runs root and releases the store even when the command failed,
// since cobra skips post-run hooks after a RunE error.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	return errors.Join(root.ExecuteContext(ctx), a.close())
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "paybridgectl",
		Short:        "Operate the payment bridge transaction store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
				cfg.Store.Driver = driver
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging).With("component", "paybridgectl")
			if cmd.Annotations[annotationNoStore] != "" {
				return nil
			}

			store, err := a.openStore(cmd.Context(), a.logger, cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			a.store = store
			return nil
		},
	}
	root.PersistentFlags().String("driver", "", "override STORE_DRIVER (memory|sqlite|neo4j)")

	root.AddCommand(
		newInitiateCmd(a),
		newImportCmd(a),
		newStatusCmd(a),
		newReplayCmd(a),
		newGenerateCmd(a),
		newSimulateCmd(a),
	)
	return root
}

type transactionView struct {
	TransactionID      string  `json:"transactionId"`
	State              string  `json:"state"`
	Amount             string  `json:"amount"`
	Currency           string  `json:"currency"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
	LastNotificationAt *string `json:"lastNotificationAt,omitempty"`
	NotificationCount  int64   `json:"notificationCount"`
	LastReportedStatus string  `json:"lastReportedStatus,omitempty"`
	ClaimUnlocked      bool    `json:"claimUnlocked"`
}

func printTransaction(w io.Writer, tx domain.Transaction) error {
	view := transactionView{
		TransactionID:      tx.ID,
		State:              string(tx.State),
		Amount:             tx.Amount.String(),
		Currency:           tx.Currency,
		CreatedAt:          tx.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:          tx.UpdatedAt.UTC().Format(timeLayout),
		NotificationCount:  tx.NotificationCount,
		LastReportedStatus: string(tx.LastReportedStatus),
		ClaimUnlocked:      tx.ClaimUnlocked,
	}
	if tx.LastNotificationAt != nil {
		ts := tx.LastNotificationAt.UTC().Format(timeLayout)
		view.LastNotificationAt = &ts
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
