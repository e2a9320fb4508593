package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) servicesCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List purchasable legal and CA services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := client.NewServicesClient(a.clientConfig()).ListServices(cmd.Context(), category)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), services)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tCATEGORY\tNAME\tPRICE")
			for _, s := range services {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\n", s.Slug, s.Category, s.Name, s.Currency, s.Price.StringFixed(2))
				for _, t := range s.Tiers {
					fmt.Fprintf(w, "\t\t  %s (%s)\t%s %s\n", t.Name, t.ID, s.Currency, t.Price.StringFixed(2))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (legal, ca)")
	return cmd
}

func (a *app) purchaseCmd() *cobra.Command {
	var (
		req purchase.InitiatePurchaseRequest
		key string
	)
	cmd := &cobra.Command{
		Use:   "purchase <service>",
		Short: "Start a service purchase and print the payment handoff",
		Long: `Start a service purchase. The service may be given by id or slug.

The same --idempotency-key can be reused to avoid creating a second request
when a previous attempt timed out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ServiceID = args[0]
			if key == "" {
				key = uuid.NewString()
			}
			req.IdempotencyKey = key
			result, err := client.NewServicesClient(a.clientConfig()).InitiatePurchase(cmd.Context(), req)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.ReferenceNumber != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Request %s was saved; retry with: bhavanctl retry-payment %s\n",
						apiErr.ReferenceNumber, apiErr.ReferenceNumber)
				}
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reference:      %s\n", result.ReferenceNumber)
			fmt.Fprintf(out, "Amount:         %s %s\n", result.PaymentIntent.Currency, result.PaymentIntent.Amount.StringFixed(2))
			fmt.Fprintf(out, "Gateway:        %s\n", result.PaymentIntent.Gateway)
			fmt.Fprintf(out, "Client secret:  %s\n", result.PaymentIntent.ClientSecret)
			fmt.Fprintf(out, "Idempotency key: %s\n", key)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ServiceTierID, "tier", "", "Service tier id")
	f.StringVar(&req.Customer.FullName, "name", "", "Customer full name")
	f.StringVar(&req.Customer.Email, "email", "", "Customer email")
	f.StringVar(&req.Customer.Phone, "phone", "", "Customer phone")
	f.StringVar(&req.Customer.Requirements, "requirements", "", "Free-text requirements")
	f.StringVar(&req.AffiliateCode, "affiliate", "", "Affiliate id to attribute the purchase to")
	f.StringVar(&key, "idempotency-key", "", "Idempotency key (generated when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func (a *app) trackCmd() *cobra.Command {
	var (
		urlStatus string
		watch     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "track <reference>",
		Short: "Show the status and timeline of a service request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker := client.NewTracker(client.NewServicesClient(a.clientConfig()), args[0])
			return a.track(cmd, tracker, urlStatus, watch)
		},
	}
	cmd.Flags().StringVar(&urlStatus, "status", "", "Status reported by the gateway redirect (success, failed, refunded)")
	cmd.Flags().DurationVarP(&watch, "watch", "w", 0, "Poll at this interval until the payment settles")
	return cmd
}

func (a *app) track(cmd *cobra.Command, tracker *client.Tracker, urlStatus string, watch time.Duration) error {
	ctx := cmd.Context()
	for {
		view, err := tracker.Refresh(ctx)
		if err != nil {
			if errors.Is(err, client.ErrReferenceNotFound) || view == nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed, showing last known state: %v\n", err)
		}
		state := tracker.DisplayState(urlStatus)
		if a.jsonOutput() {
			if err := printJSON(cmd.OutOrStdout(), map[string]any{"displayState": state, "view": view}); err != nil {
				return err
			}
		} else {
			printView(cmd, view, string(state))
		}
		if watch <= 0 || state.IsTerminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watch):
		}
	}
}

func printView(cmd *cobra.Command, view *purchase.RequestView, state string) {
	out := cmd.OutOrStdout()
	r := view.Request
	fmt.Fprintf(out, "Reference:  %s\n", r.ReferenceNumber)
	service := r.Service.Name
	if r.Service.TierName != "" {
		service += " (" + r.Service.TierName + ")"
	}
	fmt.Fprintf(out, "Service:    %s\n", service)
	fmt.Fprintf(out, "Status:     %s\n", r.StatusLabel)
	fmt.Fprintf(out, "Payment:    %s, %s %s\n", r.Payment.StatusLabel, r.Payment.Currency, r.Payment.Amount.StringFixed(2))
	fmt.Fprintf(out, "Outcome:    %s\n", state)
	if view.EstimatedNextStep != "" {
		fmt.Fprintf(out, "Next step:  %s\n", view.EstimatedNextStep)
	}
	if len(view.Timeline) > 0 {
		fmt.Fprintln(out, "Timeline:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, item := range view.Timeline {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", formatTime(item.Timestamp), item.Label, item.Description)
		}
		_ = w.Flush()
	}
}

func (a *app) retryPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-payment <reference>",
		Short: "Open a new payment session for an unpaid request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.NewServicesClient(a.clientConfig()).RetryPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pay for %s at:\n%s\n", result.ReferenceNumber, client.RedirectTarget(result))
			return nil
		},
	}
}

func (a *app) receiptCmd() *cobra.Command {
	var (
		format string
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "receipt <reference>",
		Short: "Download the receipt of a service request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := client.NewServicesClient(a.clientConfig()).DownloadReceipt(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			path, err := saveReceipt(dir, receipt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(receipt.Content))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Receipt format (txt, pdf)")
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to write the receipt to")
	return cmd
}

// saveReceipt writes the receipt under dir using only the base of its file name
func saveReceipt(dir string, receipt *client.Receipt) (string, error) {
	name := filepath.Base(filepath.Clean("/" + receipt.FileName))
	if name == "/" || name == "." {
		return "", fmt.Errorf("receipt has no usable file name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, receipt.Content, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}
