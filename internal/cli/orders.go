package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knx/internal/app"
	"knx/internal/config"
	"knx/internal/infra"
	"knx/internal/modules/order"
	"knx/internal/modules/payment"
)

// OrderCmd returns the order command
func OrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect and move orders",
	}
	cmd.AddCommand(orderValidateCmd())
	cmd.AddCommand(orderCanModifyCmd())
	cmd.AddCommand(orderEventsCmd())
	cmd.AddCommand(orderTransitionCmd())
	return cmd
}

func orderValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [order-id]",
		Short: "Check that an order's snapshots are frozen and its cart detached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				st := a.Orders.ValidateCanonicalState(ctx, id)
				return report(st.Valid, string(st.Reason), st)
			})
		},
	}
}

func orderCanModifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can-modify [order-id]",
		Short: "Show whether an order may still be edited",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				d := a.Orders.CanModifyOrder(ctx, id)
				return report(d.Allowed, string(d.Reason), d)
			})
		},
	}
}

func orderEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [order-id]",
		Short: "List an order's status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				evs, err := a.Orders.Events(ctx, id)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "AT\tFROM\tTO\tACTOR")
				for _, e := range evs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.FromStatus, e.ToStatus, e.ActorType)
				}
				return w.Flush()
			})
		},
	}
}

func orderTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition [order-id] [status]",
		Short: "Move an order to the next status as the system actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				err := a.Orders.Transition(ctx, order.TransitionCommand{
					OrderID:   id,
					To:        order.Status(args[1]),
					ActorType: order.ActorSystem,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, verdict(true, fmt.Sprintf("order %d -> %s", id, args[1])))
				return nil
			})
		},
	}
}

// PaymentCmd returns the payment command
func PaymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect and repair payments",
	}
	cmd.AddCommand(paymentGuardCmd())
	cmd.AddCommand(paymentReconcileCmd())
	cmd.AddCommand(paymentStatusCmd())
	return cmd
}

func paymentGuardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guard [order-id]",
		Short: "Show whether a payment may be created for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				g := a.Payments.CanCreatePaymentForOrder(ctx, id)
				return report(g.Allowed, string(g.Reason), g)
			})
		},
	}
}

func paymentReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [provider-intent-id]",
		Short: "Apply webhook events that arrived before their payment was known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Payments.ReconcileDeferredWebhookForIntent(ctx, args[0])
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(out, color.New(color.FgYellow).Sprint("nothing to apply"))
					return nil
				}
				fmt.Fprintln(out, verdict(true, fmt.Sprintf("applied %d event(s)", n)))
				return nil
			})
		},
	}
}

func paymentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [payment-id] [status]",
		Short: "Force a payment into a status along the allowed transitions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "payment id")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Payments.UpdateStatus(ctx, id, payment.Status(args[1]))
				if err != nil {
					return err
				}
				return report(true, string(p.Status), p)
			})
		},
	}
}

// LocatorCmd returns the locator command
func LocatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locator",
		Short: "Manage the nearby-hub index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Re-index every active hub with coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Locator.Rebuild(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, verdict(true, fmt.Sprintf("indexed %d hub(s)", n)))
				return nil
			})
		},
	})
	return cmd
}

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := infra.Migrate(cfg.DB.DSN, cfg.DB.Migrations, log.Named("migrate")); err != nil {
				log.Error("migrate", zap.Error(err))
				return err
			}
			fmt.Fprintln(out, verdict(true, "migrations applied"))
			return nil
		},
	}
}
