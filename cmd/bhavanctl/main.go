// Command bhavanctl drives the public Bhavan API from a terminal: it submits
// forms with retries, starts and tracks purchases, downloads receipts, builds
// WhatsApp and affiliate links, and tails forwarded domain events.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/client"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

// app carries the settings shared by every subcommand
type app struct {
	v *viper.Viper
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("BHAVANCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bhavanctl",
		Short:         "Command-line client for the Bhavan API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("base-url", "http://localhost:8080", "API base URL")
	flags.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	flags.Bool("json", false, "Print raw JSON responses")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	for _, name := range []string{"base-url", "timeout", "json", "log-level"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.submitFormCmd(),
		a.servicesCmd(),
		a.purchaseCmd(),
		a.trackCmd(),
		a.retryPaymentCmd(),
		a.receiptCmd(),
		a.whatsappLinkCmd(),
		a.propagateCmd(),
		a.eventsCmd(),
	)
	return root
}

func (a *app) logger() *zap.Logger {
	log, err := logger.New(logger.Config{Level: a.v.GetString("log-level"), Format: "console", Output: "stderr"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func (a *app) clientConfig() client.Config {
	return client.Config{
		BaseURL: a.v.GetString("base-url"),
		Timeout: a.v.GetDuration("timeout"),
		Logger:  a.logger(),
	}
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePairs turns key=value arguments into a map
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006 15:04")
}
