// glitchsite — marketing site and price estimator for a web design studio.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/currency"
	"github.com/seenimoa/glitchsite/internal/logging"
	"github.com/seenimoa/glitchsite/internal/pricing"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/internal/providers"
	"github.com/seenimoa/glitchsite/internal/site"
	"github.com/seenimoa/glitchsite/pkg/models"
	"github.com/seenimoa/glitchsite/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command.
var (
	cfg    *config.Config
	logger *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "glitchsite",
	Short: "glitchsite — marketing site with a live price estimator",
	Long: `glitchsite serves a single-page studio site (home, about, services,
pricing) whose quote builder prices a plan plus add-ons in the visitor's
local currency.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(currencyCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(statusCmd)
}

// newResolver registers the upstream providers with the global registry and
// builds a currency resolver over the configured defaults.
func newResolver() (*currency.Resolver, *provider.Registry, error) {
	reg := provider.Global()
	if len(reg.List()) == 0 {
		if err := providers.RegisterAll(cfg.Currency); err != nil {
			return nil, nil, fmt.Errorf("register providers: %w", err)
		}
	}
	r, err := currency.NewFromRegistry(reg, currency.OptionsFromConfig(cfg, logger))
	if err != nil {
		return nil, nil, err
	}
	return r, reg, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("glitchsite %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a plan and add-ons",
	Long: `Price a plan plus add-on features. Amounts are in the reference
currency unless --rate or --currency is given.`,
	Example: "  glitchsite quote --plan standard --feature ai-integration --currency USD",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, _ := cmd.Flags().GetString("plan")
		feats, _ := cmd.Flags().GetStringSlice("feature")
		code, _ := cmd.Flags().GetString("currency")
		rate, _ := cmd.Flags().GetFloat64("rate")

		sel, err := pricing.NewSelection(plan, feats)
		if err != nil {
			return err
		}

		info := models.CurrencyInfo{
			Code:   cfg.Pricing.ReferenceCurrency,
			Symbol: cfg.Pricing.ReferenceSymbol,
			Rate:   1,
			Source: models.SourceDefault,
		}
		switch {
		case cmd.Flags().Changed("rate"):
			if code != "" {
				parsed, err := utils.ParseCurrencyCode(code)
				if err != nil {
					return fmt.Errorf("%w: %q", currency.ErrUnknownCurrency, code)
				}
				info.Code, info.Symbol = parsed, utils.CurrencySymbol(parsed)
			}
			info.Rate, info.Source = rate, "flag"
		case code != "":
			resolver, _, err := newResolver()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Currency.Timeout()+time.Second)
			defer cancel()
			if info, err = resolver.ResolveCode(ctx, code); err != nil {
				return err
			}
		}

		r, err := pricing.RateFromFloat(info.Rate)
		if err != nil {
			return err
		}
		q, err := pricing.Estimate(sel, r)
		if err != nil {
			return err
		}

		loc := utils.ParseLocale(cfg.Pricing.Locale)
		symbol := info.Symbol
		if symbol == "" {
			symbol = info.Code
		}

		fmt.Printf("Quote in %s (rate %s, source %s)\n", info.Code, q.Rate.String(), info.Source)
		if info.Fallback && code != "" {
			fmt.Printf("  ⚠️  %s unavailable, showing %s\n", strings.ToUpper(code), info.Code)
		}
		for _, l := range q.Lines {
			name := site.Title(l.ID) + " plan"
			if l.Kind == "feature" {
				name = "  + " + site.FeatureLabel(l.ID)
			}
			fmt.Printf("  %-28s %s\n", name, utils.FormatMoney(symbol, l.Amount, loc))
		}
		fmt.Println("  " + strings.Repeat("─", 44))
		fmt.Printf("  %-28s %s\n", "Total Estimate", utils.FormatMoney(symbol, q.Total, loc))
		fmt.Println()
		fmt.Println(site.Disclaimer)
		return nil
	},
}

func init() {
	quoteCmd.Flags().String("plan", string(pricing.DefaultPlan), "plan: basic, standard or premium")
	quoteCmd.Flags().StringSlice("feature", nil, "add-on feature (repeatable): custom-components, ai-integration, full-seo, advanced-analytics")
	quoteCmd.Flags().String("currency", "", "ISO 4217 currency to price in (fetches the rate)")
	quoteCmd.Flags().Float64("rate", 1, "explicit conversion rate from the reference currency")
}

// --- Currency Command ---

var currencyCmd = &cobra.Command{
	Use:   "currency",
	Short: "Resolve the display currency for an IP address",
	Long:  "Resolve the display currency for an IP address. Without --ip the machine's own public address is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ip, _ := cmd.Flags().GetString("ip")

		resolver, _, err := newResolver()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Currency.Timeout()+time.Second)
		defer cancel()
		info := resolver.Resolve(ctx, ip)

		loc := utils.ParseLocale(cfg.Pricing.Locale)
		fmt.Printf("  Currency: %s (%s)\n", info.Code, info.Symbol)
		fmt.Printf("  Rate:     %g per %s\n", info.Rate, cfg.Pricing.ReferenceCurrency)
		fmt.Printf("  Example:  %s = %s\n",
			utils.FormatFloat(cfg.Pricing.ReferenceSymbol, 1000, loc),
			utils.FormatFloat(info.Symbol, 1000*info.Rate, loc))
		fmt.Printf("  Source:   %s\n", info.Source)
		switch {
		case info.Fallback:
			fmt.Println("  ⚠️  fell back to the reference currency")
		case info.IsReference():
			fmt.Println("  visitor is in the reference market")
		}
		return nil
	},
}

func init() {
	currencyCmd.Flags().String("ip", "", "visitor IP address to geolocate")
}

// --- Plans Command ---

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Print the plan and add-on catalog",
	Run: func(cmd *cobra.Command, args []string) {
		loc := utils.ParseLocale(cfg.Pricing.Locale)
		sym := cfg.Pricing.ReferenceSymbol

		fmt.Println("Plans:")
		for _, p := range pricing.Plans() {
			marker := " "
			if string(p.ID) == cfg.Pricing.DefaultPlan {
				marker = "*"
			}
			fmt.Printf(" %s %-10s %14s  %s\n", marker, p.ID, utils.FormatMoney(sym, p.Price, loc), p.Description)
		}
		fmt.Println()
		fmt.Println("Add-on features:")
		for _, f := range pricing.Features() {
			fmt.Printf("   %-20s %14s\n", f.ID, utils.FormatMoney(sym, f.Price, loc))
		}
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and upstream provider reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  glitchsite — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Server:        %s\n", cfg.Server.Addr())
		fmt.Printf("    Reference:     %s (%s), locale %s\n", cfg.Pricing.ReferenceCurrency, cfg.Pricing.ReferenceSymbol, cfg.Pricing.Locale)
		fmt.Printf("    Currency:      enabled=%t geo=%s rates=%s ttl=%s\n",
			cfg.Currency.Enabled, cfg.Currency.GeoProvider, cfg.Currency.RateProvider, cfg.Currency.CacheTTL)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			} else if k.Optional {
				status = "➖ not set (optional)"
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		// Providers
		_, reg, err := newResolver()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Currency.Timeout()+time.Second)
		defer cancel()

		fmt.Println("  Providers:")
		for _, c := range []provider.Capability{provider.CapabilityGeolocation, provider.CapabilityRates} {
			def, _ := reg.DefaultProvider(c)
			names := reg.ProvidersFor(c)
			for i, n := range names {
				if n == def {
					names[i] = n + "*"
				}
			}
			fmt.Printf("    %-25s %s\n", string(c)+":", strings.Join(names, ", "))
		}
		fmt.Println()
		for _, res := range reg.Ping(ctx) {
			status := "✅ reachable"
			if !res.OK {
				status = "❌ " + res.Error
			}
			fmt.Printf("    %-25s %s\n", res.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
