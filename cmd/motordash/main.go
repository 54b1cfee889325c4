package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ght123247/UIproj"
	"github.com/ght123247/UIproj/internal/adapters/httpapi"
	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/adapters/opcua"
	"github.com/ght123247/UIproj/internal/app/config"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/app/poller"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

const configHelp = "Path to configuration file (defaults and MOTORDASH_* env when empty)"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	case "set":
		err = setCommand(os.Args[2:])
	case "stop":
		err = stopCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("motordash %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", configHelp)
	addr := fs.String("addr", "", "Dashboard listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := motordash.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	rt, err := motordash.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", configHelp)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := motordash.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	endpoints, err := httpapi.ResolveEndpoints(cfg.API.Host, cfg.API.BasePath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good ✅\n", displayPath(*cfgPath))
	fmt.Printf("  source:    %s\n", cfg.Source.Kind)
	fmt.Printf("  latest:    %s\n", endpoints.Latest)
	fmt.Printf("  control:   %s\n", endpoints.SetParameters)
	fmt.Printf("  dashboard: %s  metrics: %s\n", cfg.Server.Addr, cfg.Metrics.Addr)
	return nil
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		observability.PollsTotal:           0,
		observability.PollFailuresTotal:    0,
		observability.PollsSupersededTotal: 0,
		observability.ControlCommandsTotal: 0,
		observability.WebsocketClients:     0,
	}

	// Series are summed across the component label.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if !strings.HasPrefix(line, key+" ") && !strings.HasPrefix(line, key+"{") {
				continue
			}
			fields := strings.Fields(line)
			if v, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				targets[key] += v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] polls=%.0f failures=%.0f superseded=%.0f commands=%.0f ws_clients=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets[observability.PollsTotal],
		targets[observability.PollFailuresTotal],
		targets[observability.PollsSupersededTotal],
		targets[observability.ControlCommandsTotal],
		targets[observability.WebsocketClients],
	)
	return nil
}

func watchCommand(args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", configHelp)
	interval := fs.Duration("interval", 0, "Poll interval (defaults to policy.poll_interval)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *interval <= 0 {
		*interval = cfg.Policy.PollInterval
	}
	src, closeSrc, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	var (
		lastSeq  uint64
		lastConn = domain.Connected
	)
	p := poller.New("watch", src, poller.WithListener(func(st poller.State) {
		switch {
		case st.Seq != lastSeq && st.Sample != nil:
			lastSeq = st.Seq
			fmt.Println(formatSample(st.Sample))
		case st.Connectivity != lastConn && st.LastError != nil:
			fmt.Fprintf(os.Stderr, "[%s] %s: %v\n", st.UpdatedAt.Format(time.TimeOnly), st.Connectivity, st.LastError)
		}
		lastConn = st.Connectivity
	}))
	if err := p.Start(*interval); err != nil {
		return err
	}
	defer p.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Printf("Watching %s every %s (Ctrl+C to stop)\n", src.Name(), *interval)
	<-ctx.Done()
	return nil
}

func setCommand(args []string) error {
	fs := pflag.NewFlagSet("set", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", configHelp)
	mode := fs.StringP("mode", "m", string(domain.ModeSpeed), "Control mode: speed or torque")
	value := fs.Float64P("value", "v", 0, "Setpoint in display units (rpm, or mN·m for torque)")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	panel, err := newPanel(*cfgPath)
	if err != nil {
		return err
	}
	if err := panel.SetMode(domain.ControlMode(strings.ToLower(*mode))); err != nil {
		return err
	}
	if panel.Snapshot().Mode == domain.ModeTorque {
		err = panel.SetTorque(*value)
	} else {
		err = panel.SetRPM(*value)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	cmd, err := panel.Submit(ctx)
	if err != nil {
		return err
	}
	return printCommand(cmd)
}

func stopCommand(args []string) error {
	fs := pflag.NewFlagSet("stop", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", configHelp)
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	panel, err := newPanel(*cfgPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := panel.Stop(ctx); err != nil {
		return err
	}
	return printCommand(domain.StopCommand())
}

func newPanel(cfgPath string) (*control.Panel, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	endpoints, err := httpapi.ResolveEndpoints(cfg.API.Host, cfg.API.BasePath)
	if err != nil {
		return nil, err
	}
	return control.NewPanel(httpapi.New(endpoints), cfg.Control), nil
}

func newSource(cfg *config.Config) (ports.TelemetrySource, func(), error) {
	if cfg.Source.Kind == config.SourceOPCUA {
		src, err := opcua.NewSource(cfg.OPCUA)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	}
	endpoints, err := httpapi.ResolveEndpoints(cfg.API.Host, cfg.API.BasePath)
	if err != nil {
		return nil, nil, err
	}
	return httpapi.New(endpoints), func() {}, nil
}

func formatSample(s *domain.TelemetrySample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.ReceivedAt.Format(time.TimeOnly))
	if s.HasMotor {
		fmt.Fprintf(&b, " rpm=%.0f torque=%.0fmN·m load=%.1f%% temp=%.1f°C power=%.0fW",
			s.RPM, s.TorqueDisplay(), s.Load, s.Temperature, s.Power)
	}
	if s.HasVibration {
		fmt.Fprintf(&b, " freq=%.1fHz amp=%.3f rms=%.3f impulses=%d health=%.0f wear=%.0f",
			s.VibrationFrequency, s.Amplitude, s.RMS, s.ImpulseCount, s.HealthIndex, s.ToolWear)
	}
	return b.String()
}

func printCommand(cmd domain.ControlCommand) error {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s\n", raw)
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}

func printUsage() {
	fmt.Printf(`motordash CLI

Usage:
  motordash <command> [flags]

Commands:
  run        Serve the operator dashboard and the metrics endpoint
  validate   Load and validate a config file without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters
  watch      Poll telemetry and print one line per new sample
  set        Submit a speed or torque setpoint
  stop       Submit STOP (speed mode, rpm 0, torque 0)

Examples:
  motordash run --config ./motordash.yaml
  motordash validate -c ./motordash.yaml
  motordash stats --url http://localhost:9100/metrics --interval 1s
  motordash watch -c ./motordash.yaml
  motordash set --mode torque --value 3000
  motordash stop
`)
}
