package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"knx/internal/app"
	"knx/internal/modules/pricing"
	"knx/internal/modules/totals"
)

// AvailabilityCmd returns the availability command
func AvailabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "availability [hub-id]",
		Short: "Show whether a hub can take orders right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hubID, err := parseID(args[0], "hub id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				d := a.Availability.Decide(ctx, hubID)
				return report(d.CanOrder, string(d.Reason), d)
			})
		},
	}
}

// CoverageCmd returns the coverage command
func CoverageCmd() *cobra.Command {
	var p pointFlags
	cmd := &cobra.Command{
		Use:     "coverage [hub-id]",
		Short:   "Check whether a location is inside a hub's delivery area",
		Example: `  knxctl coverage 12 --lat 40.7128 --lng -74.0060`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hubID, err := parseID(args[0], "hub id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.Coverage.Check(ctx, hubID, p.point())
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "  skipped zone %d: %s %s\n", s.ZoneID, s.Reason, s.Detail)
				}
				return report(res.OK, string(res.Reason), res)
			})
		},
	}
	p.register(cmd)
	return cmd
}

// DistanceCmd returns the distance command
func DistanceCmd() *cobra.Command {
	var p pointFlags
	cmd := &cobra.Command{
		Use:   "distance [hub-id]",
		Short: "Show hub-to-customer distance and ETA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hubID, err := parseID(args[0], "hub id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.Distance.Calculate(ctx, hubID, p.point())
				return report(res.OK, string(res.Reason), res)
			})
		},
	}
	p.register(cmd)
	return cmd
}

// FeeCmd returns the fee command
func FeeCmd() *cobra.Command {
	var (
		p        pointFlags
		subtotal string
	)
	cmd := &cobra.Command{
		Use:   "fee [hub-id]",
		Short: "Resolve the delivery fee rule and compute the fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hubID, err := parseID(args[0], "hub id")
			if err != nil {
				return err
			}
			sub, err := decimal.NewFromString(subtotal)
			if err != nil {
				return fmt.Errorf("invalid subtotal %q", subtotal)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				dist := a.Distance.Calculate(ctx, hubID, p.point())
				if !dist.OK {
					return report(false, string(dist.Reason), dist)
				}
				res := a.Pricing.Calculate(ctx, pricing.FeeRequest{
					HubID:      hubID,
					ZoneID:     a.Coverage.Check(ctx, hubID, p.point()).PricedZone(),
					DistanceKm: dist.DistanceKm,
					Subtotal:   sub,
				})
				return report(res.OK, string(res.Reason), res)
			})
		},
	}
	p.register(cmd)
	cmd.Flags().StringVar(&subtotal, "subtotal", "0", "cart subtotal")
	return cmd
}

// QuoteCmd returns the quote command
func QuoteCmd() *cobra.Command {
	var (
		p           pointFlags
		subtotal    string
		tip         string
		fulfillment string
		coupon      string
	)
	cmd := &cobra.Command{
		Use:     "quote [hub-id]",
		Short:   "Compute order totals exactly as checkout would",
		Example: `  knxctl quote 12 --subtotal 40 --lat 40.71 --lng -74.00 --coupon SAVE10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hubID, err := parseID(args[0], "hub id")
			if err != nil {
				return err
			}
			sub, err := decimal.NewFromString(subtotal)
			if err != nil {
				return fmt.Errorf("invalid subtotal %q", subtotal)
			}
			tipAmt, err := decimal.NewFromString(tip)
			if err != nil {
				return fmt.Errorf("invalid tip %q", tip)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				params := totals.QuoteParams{
					HubID:           hubID,
					Subtotal:        sub,
					Tip:             tipAmt,
					FulfillmentType: fulfillment,
					Customer:        p.point(),
					CouponCode:      coupon,
				}
				if fulfillment == totals.FulfillmentDelivery {
					params.ZoneID = a.Coverage.Check(ctx, hubID, params.Customer).PricedZone()
				}
				res := a.Totals.Quote(ctx, params)
				label := "QUOTED"
				if !res.Success {
					label = res.Error
				}
				return report(res.Success, label, res)
			})
		},
	}
	p.register(cmd)
	cmd.Flags().StringVar(&subtotal, "subtotal", "0", "cart subtotal")
	cmd.Flags().StringVar(&tip, "tip", "0", "tip amount")
	cmd.Flags().StringVar(&fulfillment, "fulfillment", totals.FulfillmentDelivery, "delivery or pickup")
	cmd.Flags().StringVar(&coupon, "coupon", "", "coupon code")
	return cmd
}
