package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"knx/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "knxctl",
		Short: "knxctl - operator tool for the knx marketplace core",
		Long: `knxctl runs the decision engines against the live database so operators
can see exactly what a customer would be told, and repairs payment state.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.AvailabilityCmd())
	rootCmd.AddCommand(cli.CoverageCmd())
	rootCmd.AddCommand(cli.DistanceCmd())
	rootCmd.AddCommand(cli.FeeCmd())
	rootCmd.AddCommand(cli.QuoteCmd())
	rootCmd.AddCommand(cli.OrderCmd())
	rootCmd.AddCommand(cli.PaymentCmd())
	rootCmd.AddCommand(cli.LocatorCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
