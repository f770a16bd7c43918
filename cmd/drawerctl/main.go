// Command drawerctl drives the cart drawer engine against a storefront: it
// loads the page, performs one interaction and prints what the shopper would
// see afterwards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
)

var (
	// Global flags
	configPath    string
	storefrontURL string
	session       string
	verbose       bool
	showHTML      bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "drawerctl",
	Short: "Drive the cart drawer against a storefront",
	Long: `drawerctl loads the storefront page into a live document, wires the cart
drawer engine onto it, performs a single interaction and reports the
resulting drawer, announcements and header count.

Example:
  drawerctl --storefront http://localhost:8080 recommend 1003
  drawerctl --storefront http://localhost:8080 --session <token> change 1 3`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if storefrontURL != "" {
			cfg.Engine.StorefrontURL = storefrontURL
		}
		if session != "" {
			cfg.Engine.Session = session
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&storefrontURL, "storefront", "", "storefront base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&session, "session", "", "cart session token to resume (printed after each run)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&showHTML, "html", false, "print the drawer markup after the interaction")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
