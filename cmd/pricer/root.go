package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"switch-pricer/book"
	"switch-pricer/config"
	"switch-pricer/feed"
	"switch-pricer/infrastructure/logger"
	"switch-pricer/internal/container"
	"switch-pricer/metrics"
	"switch-pricer/quote"
	"switch-pricer/report"
)

type rootFlags struct {
	configPath string
	logLevel   string
	cacheMode  string
}

func newRootCmd(ctx context.Context) *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "pricer",
		Short:         "Synthetic best bid/ask for spread-linked instruments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "配置文件路径（为空则使用参考拓扑）")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "覆盖日志级别")
	root.PersistentFlags().StringVar(&f.cacheMode, "cache-mode", "", "覆盖缓存模式: metric|path|off")

	root.AddCommand(replayCmd(ctx, &f))
	root.AddCommand(quoteCmd(ctx, &f))
	root.AddCommand(topologyCmd(&f))
	return root
}

// app 一次命令执行所需的配置、日志与指标。
type app struct {
	cfg     config.AppConfig
	log     *logger.Logger
	metrics *metrics.Collector
}

func loadApp(f *rootFlags) (*app, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadWithEnvOverrides(f.configPath); err != nil {
			return nil, err
		}
	} else {
		config.ApplyEnv(&cfg)
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.cacheMode != "" {
		cfg.Pricing.CacheMode = f.cacheMode
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: l, metrics: metrics.New(cfg.Metrics)}, nil
}

func (a *app) newBook(opts ...book.Option) (*book.Book, error) {
	g, err := a.cfg.BuildGraph()
	if err != nil {
		return nil, err
	}
	base := []book.Option{
		book.WithLogger(a.log.Logger),
		book.WithMetrics(a.metrics),
		book.WithCacheMode(a.cfg.CacheMode()),
	}
	return book.New(g, append(base, opts...)...), nil
}

func replayCmd(ctx context.Context, f *rootFlags) *cobra.Command {
	var (
		follow      bool
		quiet       bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "replay <orders-file>",
		Short: "录入订单脚本，每笔订单后输出完整状态",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(f)
			if err != nil {
				return err
			}
			defer a.log.Close()

			out := cmd.OutOrStdout()
			var opts []book.Option
			if !quiet {
				opts = append(opts, book.WithReporter(func(books []report.Instrument) {
					if err := report.Render(out, books); err != nil {
						a.log.Warn("render report failed", zap.Error(err))
					}
				}))
			}
			b, err := a.newBook(opts...)
			if err != nil {
				return err
			}

			if !follow {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				n, err := feed.Replay(ctx, file, b, a.log.Logger)
				a.log.Info("replay finished", zap.Int("orders", n))
				return err
			}

			addr := a.cfg.Metrics.Addr
			if metricsAddr != "" {
				addr = metricsAddr
			}
			fl, err := feed.NewFollower(args[0], b, a.log.Logger)
			if err != nil {
				return err
			}

			lm := container.NewLifecycleManager()
			if addr != "" {
				lm.Register("metrics", container.NewHTTPServer("metrics", addr, a.metrics.Mux(), a.log.Logger))
			}
			if f.configPath != "" {
				w := config.Watcher{
					Path: f.configPath,
					OnError: func(err error) {
						a.log.LogError(err, map[string]interface{}{"path": f.configPath})
					},
				}
				lm.Register("config-watcher", container.NewBackground("config-watcher", func(ctx context.Context) error {
					return w.Start(ctx, func(cfg config.AppConfig) {
						level := reloadLevel(cfg, f.logLevel)
						if err := a.log.SetLevel(level); err == nil {
							a.log.Info("log level reloaded", zap.String("level", level))
						}
					})
				}))
			}
			lm.Register("follower", fl)

			if err := lm.StartAll(ctx); err != nil {
				return err
			}
			a.log.Info("following order file", zap.String("path", args[0]), zap.Int("orders", fl.Processed()))
			<-ctx.Done()
			return lm.StopAll()
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "录入后继续跟随文件追加的订单")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "不输出每笔订单后的状态")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus metrics 监听地址（仅 --follow）")
	return cmd
}

// reloadLevel 热加载时的日志级别，命令行 --log-level 优先于配置文件。
func reloadLevel(cfg config.AppConfig, flagLevel string) string {
	if flagLevel != "" {
		return flagLevel
	}
	return cfg.Log.Level
}

func quoteCmd(ctx context.Context, f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <orders-file> [instrument...]",
		Short: "录入订单脚本后输出各合约的最优买卖价",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(f)
			if err != nil {
				return err
			}
			defer a.log.Close()
			b, err := a.newBook()
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			if _, err := feed.Replay(ctx, file, b, a.log.Logger); err != nil {
				return err
			}
			ids := args[1:]
			if len(ids) == 0 {
				ids = b.IDs()
			}
			return writeQuotes(cmd.OutOrStdout(), b, ids)
		},
	}
}

func writeQuotes(w io.Writer, b *book.Book, ids []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tBID\tASK\tCROSSED")
	for _, id := range ids {
		bid, err := b.BestBid(id)
		if err != nil {
			return err
		}
		ask, err := b.BestAsk(id)
		if err != nil {
			return err
		}
		crossed, err := b.IsCrossed(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", id, describe(bid), describe(ask), crossed)
	}
	return tw.Flush()
}

func describe(q quote.Quote) string {
	if q == nil {
		return "-"
	}
	if s, ok := q.(quote.Synthetic); ok {
		return fmt.Sprintf("%s syn(%s %s %s)", s.Price.String(), s.Left, s.Op, s.Right)
	}
	r := q.(quote.Real)
	return fmt.Sprintf("%s %s", r.Price.String(), r.User)
}

func topologyCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "输出已注册的合约及其价差/switch 关系",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(f)
			if err != nil {
				return err
			}
			defer a.log.Close()
			if len(a.cfg.Instruments) == 0 {
				return errors.New("no instruments configured")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLEGS\tLHS_SWITCHES\tRHS_SWITCHES")
			for _, s := range a.cfg.Instruments {
				legs := "-"
				if s.LHS != "" {
					legs = s.RHS + " - " + s.LHS
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%v\n", s.ID, legs, s.LHSSwitches, s.RHSSwitches)
			}
			return tw.Flush()
		},
	}
}
