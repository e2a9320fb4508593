package main

import (
	"fmt"
	"time"

	"github.com/bhavan/backend/internal/client"
	"github.com/spf13/cobra"
)

func (a *app) submitFormCmd() *cobra.Command {
	var (
		formType  string
		affiliate string
		source    string
		attempts  int
		baseDelay time.Duration
		utm       []string
	)
	cmd := &cobra.Command{
		Use:   "submit-form key=value...",
		Short: "Submit a form, retrying transient failures with exponential backoff",
		Example: `  bhavanctl submit-form --type contact name=Asha phone=9876543210 message="Call me"
  bhavanctl submit-form --type callback --affiliate partner9 --utm source=google phone=9876543210`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parsePairs(args)
			if err != nil {
				return err
			}
			utmParams, err := parsePairs(utm)
			if err != nil {
				return err
			}
			cfg := a.clientConfig()
			cfg.MaxAttempts = attempts
			cfg.BaseDelay = baseDelay

			now := time.Now()
			form := client.FormSubmission{
				FormType:    formType,
				Data:        data,
				Timestamp:   &now,
				AffiliateID: affiliate,
				SourcePath:  source,
			}
			form.UTMParams.Source = utmParams["source"]
			form.UTMParams.Medium = utmParams["medium"]
			form.UTMParams.Campaign = utmParams["campaign"]
			form.UTMParams.Term = utmParams["term"]
			form.UTMParams.Content = utmParams["content"]

			result, err := client.NewFormClient(cfg).Submit(cmd.Context(), form)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s form %s at %s\n", result.FormType, result.ID, formatTime(result.SubmittedAt))
			return nil
		},
	}
	cmd.Flags().StringVarP(&formType, "type", "t", "contact", "Form type")
	cmd.Flags().StringVar(&affiliate, "affiliate", "", "Affiliate id to attribute the lead to")
	cmd.Flags().StringVar(&source, "source-path", "", "Page the form was submitted from")
	cmd.Flags().StringSliceVar(&utm, "utm", nil, "UTM parameters as key=value (source, medium, campaign, term, content)")
	cmd.Flags().IntVar(&attempts, "attempts", client.DefaultMaxAttempts, "Maximum attempts")
	cmd.Flags().DurationVar(&baseDelay, "base-delay", client.DefaultBaseDelay, "Delay before the first retry; doubles per attempt")
	return cmd
}
