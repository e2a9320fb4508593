package main

import (
	"fmt"
	"net/url"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/whatsapp"
	"github.com/spf13/cobra"
)

func (a *app) whatsappLinkCmd() *cobra.Command {
	var (
		phone, countryCode   string
		kind                 string
		title, location      string
		service, reference   string
		broker, affiliateRaw string
	)
	cmd := &cobra.Command{
		Use:   "whatsapp-link",
		Short: "Build a click-to-chat link with a prefilled enquiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var message string
			switch kind {
			case "general":
				message = whatsapp.GeneralEnquiry()
			case "property":
				if title == "" {
					return fmt.Errorf("--title is required for property enquiries")
				}
				message = whatsapp.PropertyEnquiry(title, location)
			case "service":
				if service == "" {
					return fmt.Errorf("--service is required for service enquiries")
				}
				message = whatsapp.ServiceEnquiry(service, reference)
			case "listing":
				if broker == "" {
					return fmt.Errorf("--broker is required for listing messages")
				}
				message = whatsapp.ListingSubmitted(broker)
			default:
				return fmt.Errorf("unknown context %q, expected general, property, service or listing", kind)
			}
			if affiliateRaw != "" {
				affiliate := attribution.Normalize(affiliateRaw, nil)
				if !affiliate.IsPresent() {
					return fmt.Errorf("invalid affiliate id %q", affiliateRaw)
				}
				message = whatsapp.WithReferral(message, affiliate.String())
			}
			if phone == "" {
				phone = a.v.GetString("whatsapp-number")
			}
			if phone == "" {
				return fmt.Errorf("--phone or BHAVANCTL_WHATSAPP_NUMBER is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), whatsapp.NewLinker(phone, countryCode).Link(message))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&phone, "phone", "", "Business number")
	f.StringVar(&countryCode, "country-code", whatsapp.DefaultCountryCode, "Country code for 10-digit numbers")
	f.StringVar(&kind, "context", "general", "Enquiry context (general, property, service, listing)")
	f.StringVar(&title, "title", "", "Property title")
	f.StringVar(&location, "location", "", "Property location")
	f.StringVar(&service, "service", "", "Service name")
	f.StringVar(&reference, "ref", "", "Service request reference")
	f.StringVar(&broker, "broker", "", "Broker name")
	f.StringVar(&affiliateRaw, "affiliate", "", "Affiliate id appended as a referral line")
	return cmd
}

func (a *app) propagateCmd() *cobra.Command {
	var current, origin string
	cmd := &cobra.Command{
		Use:   "propagate <target>...",
		Short: "Carry the affiliate_id of a page URL onto same-origin links",
		Example: `  bhavanctl propagate --current "https://bhavan.in/?affiliate_id=partner9" /services /contact
  bhavanctl propagate --current "https://bhavan.in/p?affiliate_id=partner9" https://example.com/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := url.Parse(current)
			if err != nil || cur.Host == "" {
				return fmt.Errorf("--current must be an absolute URL")
			}
			var org *url.URL
			if origin != "" {
				if org, err = url.Parse(origin); err != nil || org.Host == "" {
					return fmt.Errorf("--origin must be an absolute URL")
				}
			}
			affiliate := attribution.Resolve(cur, func(candidate string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "ignoring invalid affiliate_id %q\n", candidate)
			})
			if !affiliate.IsPresent() {
				fmt.Fprintln(cmd.ErrOrStderr(), "no affiliate on --current, targets are unchanged")
			}
			for _, target := range args {
				fmt.Fprintln(cmd.OutOrStdout(), attribution.PropagateID(affiliate, org, cur, target))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "URL of the page the links appear on")
	cmd.Flags().StringVar(&origin, "origin", "", "Site origin (defaults to the origin of --current)")
	_ = cmd.MarkFlagRequired("current")
	return cmd
}
