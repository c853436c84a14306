package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saylorsolutions/pvdispatch/cli"
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/httpx"
	"github.com/saylorsolutions/pvdispatch/pv"
	"github.com/saylorsolutions/pvdispatch/sim"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	flagUpdates     = "updates"
	flagInterval    = "interval"
	flagSlow        = "slow"
	flagPuts        = "puts"
	flagPutDelay    = "put-delay"
	flagMetricsAddr = "metrics-addr"
)

var defaultPVs = []string{"sim:ai1", "sim:ai2"}

func (a *app) simulateCommand(set *cli.CommandSet) {
	cmd := set.AddCommand("simulate", "Drives simulated process variables through the callback dispatcher", "sim")
	flags := cmd.Flags()
	addConfigFlags(flags)
	flags.IntP(flagUpdates, "n", 100, "Number of value updates to publish for each PV")
	flags.Duration(flagInterval, time.Millisecond, "Delay between published updates")
	flags.Duration(flagSlow, 0, "Extra time each monitor callback takes, to show queues absorbing slow user code")
	flags.Int(flagPuts, 5, "Number of puts with completion callbacks to make for each PV")
	flags.Duration(flagPutDelay, 5*time.Millisecond, "Simulated time for a put to complete")
	flags.String(flagMetricsAddr, "", "Serves Prometheus metrics at this `address` while running, overriding configuration")
	cmd.Usage("[FLAGS] [PV...]")
	cmd.Does(a.simulate)
}

type pvCounters struct {
	name        string
	connections atomic.Int64
	updates     atomic.Int64
	completions atomic.Int64
}

func (a *app) simulate(ctx context.Context, flags *flag.FlagSet, _ *cli.Printer) error {
	var (
		updates  = cli.MustGet(flags.GetInt(flagUpdates))
		interval = cli.MustGet(flags.GetDuration(flagInterval))
		slow     = cli.MustGet(flags.GetDuration(flagSlow))
		puts     = cli.MustGet(flags.GetInt(flagPuts))
		putDelay = cli.MustGet(flags.GetDuration(flagPutDelay))
		names    = flags.Args()
	)
	if updates < 0 || puts < 0 {
		return cli.NewUsageError("updates and puts must be >= 0")
	}
	if len(names) == 0 {
		names = defaultPVs
	}
	if addr := cli.MustGet(flags.GetString(flagMetricsAddr)); len(addr) > 0 {
		a.conf.Metrics.Addr = addr
	}

	client := sim.NewClient(ctx, sim.WithLogger(a.log), sim.WithPutDelay(putDelay))
	defer client.Close()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts, err := a.conf.DispatchOptions(dispatch.WithRegisterer(reg), dispatch.WithErrorHandler(func(err *dispatch.CallbackError) {
		a.log.Debug("Reported callback failure", "error", err)
	}))
	if err != nil {
		return err
	}
	conn, err := pv.Setup(a.log, client, opts...)
	if err != nil {
		return err
	}
	teardown := dispatch.InstallExitHook(ctx)
	defer teardown()
	d := conn.Dispatcher()

	if len(a.conf.Metrics.Addr) > 0 {
		_, stopMetrics, err := serveMetrics(ctx, a.log, a.conf.Metrics.Addr, reg)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	counters := make([]*pvCounters, len(names))
	handles := make([]*pv.Handle, len(names))
	for i, name := range names {
		c := &pvCounters{name: name}
		counters[i] = c
		h, err := conn.GetPV(ctx, name, pv.GetPVOptions{
			ConnectOptions: pv.ConnectOptions{
				ConnectionCallback: func(ev pv.ConnectionEvent) {
					c.connections.Add(1)
					a.log.Debug("Connection changed", "pv", ev.Name, "connected", ev.Connected)
				},
				MonitorCallback: func(ev pv.MonitorEvent) {
					if slow > 0 {
						time.Sleep(slow)
					}
					c.updates.Add(1)
				},
			},
			Connect: true,
		})
		if err != nil {
			return err
		}
		handles[i] = h
	}
	defer pv.Release(pvChannels(handles)...)

	if err := d.ScheduleUtilityTask(interval, func(...dispatch.Param) error {
		a.log.Info("Queue depths after first interval", "queues", d.QueueLens())
		return nil
	}); err != nil && !errors.Is(err, dispatch.ErrUnknownCategory) {
		return err
	}

	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for i, h := range handles {
		c := counters[i]
		group.Go(func() error {
			return drive(groupCtx, client, h, c, updates, puts, interval)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	a.log.Info("Published all updates, stopping dispatcher", "elapsed", time.Since(start))

	stopErr := dispatch.Teardown()
	out := cli.NewPrinter()
	out.Redirect(a.stdout)
	printStats(out, d, counters)
	if stopErr != nil {
		return fmt.Errorf("dispatcher did not stop cleanly: %w", stopErr)
	}
	return nil
}

func drive(ctx context.Context, client *sim.Client, h *pv.Handle, c *pvCounters, updates, puts int, interval time.Duration) error {
	ticker := time.NewTicker(max(interval, time.Microsecond))
	defer ticker.Stop()
	for i := 0; i < updates; i++ {
		if err := client.Publish(h.Name(), float64(i)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	for i := 0; i < puts; i++ {
		completion, err := h.PutFuture(ctx, float64(updates+i)).AwaitCtx(ctx)
		if err != nil {
			return fmt.Errorf("put to '%s' failed: %w", h.Name(), err)
		}
		if completion.Err == nil {
			c.completions.Add(1)
		}
	}
	return nil
}

func printStats(printer *cli.Printer, d *dispatch.Dispatcher, counters []*pvCounters) {
	var rows [][]string
	for _, stats := range d.Stats() {
		rows = append(rows, []string{
			stats.Category.String(),
			strconv.FormatUint(stats.Enqueued, 10),
			strconv.FormatUint(stats.Executed, 10),
			strconv.FormatUint(stats.Failed, 10),
			strconv.FormatUint(stats.Dropped, 10),
			strconv.FormatUint(stats.Rejected, 10),
		})
	}
	printer.Table([]string{"CATEGORY", "ENQUEUED", "EXECUTED", "FAILED", "DROPPED", "REJECTED"}, rows)
	printer.Println()

	rows = rows[:0]
	for _, c := range counters {
		rows = append(rows, []string{
			c.name,
			strconv.FormatInt(c.connections.Load(), 10),
			strconv.FormatInt(c.updates.Load(), 10),
			strconv.FormatInt(c.completions.Load(), 10),
		})
	}
	printer.Table([]string{"PV", "CONNECTIONS", "UPDATES", "PUTS"}, rows)
}

func pvChannels(handles []*pv.Handle) []pv.Channel {
	channels := make([]pv.Channel, len(handles))
	for i, h := range handles {
		channels[i] = h
	}
	return channels
}

// serveMetrics exposes reg on addr until the returned stop function is called.
func serveMetrics(ctx context.Context, log *slog.Logger, addr string, reg *prometheus.Registry) (listenAddr string, stop func(), err error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", httpx.Wrap(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		httpx.RecoveryMiddleware(log),
		httpx.LoggingMiddleware(log, slog.LevelDebug),
	))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := httpx.Serve(ctx, srv, listener); err != nil {
			log.Error("Metrics server failed", "error", err)
		}
	}()
	listenAddr = listener.Addr().String()
	log.Info("Serving metrics", "addr", listenAddr)
	return listenAddr, func() {
		cancel()
		<-done
	}, nil
}
