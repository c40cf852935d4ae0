// README: Shared plumbing for knxctl commands: config, service graph and colored output.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knx/internal/app"
	"knx/internal/config"
	"knx/internal/infra"
	"knx/internal/types"
)

var out io.Writer = os.Stdout

// withApp loads config, builds the service graph and runs fn against it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, cfg, log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func verdict(ok bool, label string) string {
	if ok {
		return color.New(color.FgGreen).Sprint("✓ " + label)
	}
	return color.New(color.FgRed).Sprint("✗ " + label)
}

// report prints a one-line verdict followed by the full result as JSON.
func report(ok bool, label string, v any) error {
	fmt.Fprintln(out, verdict(ok, label))
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, raw)
	}
	return id, nil
}

type pointFlags struct {
	lat, lng float64
}

func (p *pointFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.lat, "lat", 0, "customer latitude")
	cmd.Flags().Float64Var(&p.lng, "lng", 0, "customer longitude")
}

func (p *pointFlags) point() types.Point {
	return types.Point{Lat: p.lat, Lng: p.lng}
}
