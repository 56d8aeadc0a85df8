// iotctl is the operator CLI for the IoT device core. It reads the same
// config file as the service and talks to the same stores directly.
//
// Usage:
//
//	iotctl [-config path] <command> [args]
//
// Commands:
//
//	latest <device>                                   latest value of each field (last hour)
//	range <device> <start> <stop>                     raw samples between start and stop
//	aggregate <device> <field> <start> <stop> <every> windowed mean of one field
//	status <device>                                   realtime status (cache, then directory)
//	devices [-online]                                 list directory devices
//	discover                                          publish discovery configs for every device
//	alarm <device> <type> <level> <value>             publish an alarm to the hub
//	republish [device...]                             push latest telemetry to the hub data topics
//
// Times are RFC 3339, "now", or a signed duration relative to now ("-2h").
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/nerrad567/iot-device-core/migrations"

	"github.com/nerrad567/iot-device-core/internal/bridges/homeassistant"
	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/database"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/rediscache"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

const defaultConfigPath = "configs/config.yaml"

// errUsage marks argument errors; main prints usage for them.
var errUsage = errors.New("usage")

type command struct {
	args string
	run  func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = map[string]command{
	"latest":    {"<device>", cmdLatest},
	"range":     {"<device> <start> <stop>", cmdRange},
	"aggregate": {"<device> <field> <start> <stop> <every>", cmdAggregate},
	"status":    {"<device>", cmdStatus},
	"devices":   {"[-online]", cmdDevices},
	"discover":  {"", cmdDiscover},
	"alarm":     {"<device> <type> <level> <value>", cmdAlarm},
	"republish": {"[device...]", cmdRepublish},
}

// cliEnv carries the loaded config and the output stream. Stores are opened
// lazily by each command and closed by closeAll.
type cliEnv struct {
	cfg    *config.Config
	out    io.Writer
	log    *logging.Logger
	now    func() time.Time
	redis  *rediscache.StatusCache // set by directory when Redis is enabled
	closer []func() error
}

func (e *cliEnv) onClose(fn func() error) { e.closer = append(e.closer, fn) }

func (e *cliEnv) closeAll() {
	for i := len(e.closer) - 1; i >= 0; i-- {
		if err := e.closer[i](); err != nil {
			e.log.Warn("close failed", "error", err)
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, out io.Writer) error {
	fs := flag.NewFlagSet("iotctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", configPathFromEnv(), "config file path")
	if err := fs.Parse(argv); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	env := &cliEnv{
		cfg: cfg,
		out: out,
		log: logging.NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "cli", os.Stderr),
		now: time.Now,
	}
	defer env.closeAll()

	return cmd.run(ctx, env, fs.Args()[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: iotctl [-config path] <command> [args]")
	for _, name := range []string{"latest", "range", "aggregate", "status", "devices", "discover", "alarm", "republish"} {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].args)
	}
}

func configPathFromEnv() string {
	if path := os.Getenv("IOTCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func cmdLatest(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: latest <device>", errUsage)
	}
	client, err := env.influx()
	if err != nil {
		return err
	}
	samples, err := client.QueryLatest(ctx, args[0])
	if err != nil {
		return err
	}
	return env.print(samples)
}

func cmdRange(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: range <device> <start> <stop>", errUsage)
	}
	start, stop, err := parseWindow(args[1], args[2], env.now())
	if err != nil {
		return err
	}
	client, err := env.influx()
	if err != nil {
		return err
	}
	samples, err := client.QueryRange(ctx, args[0], start, stop)
	if err != nil {
		return err
	}
	return env.print(samples)
}

func cmdAggregate(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("%w: aggregate <device> <field> <start> <stop> <every>", errUsage)
	}
	start, stop, err := parseWindow(args[2], args[3], env.now())
	if err != nil {
		return err
	}
	every, err := time.ParseDuration(args[4])
	if err != nil || every <= 0 || every%time.Millisecond != 0 {
		return fmt.Errorf("%w: invalid window %q", errUsage, args[4])
	}
	client, err := env.influx()
	if err != nil {
		return err
	}
	samples, err := client.QueryAggregate(ctx, args[0], args[1], start, stop, every)
	if err != nil {
		return err
	}
	return env.print(samples)
}

func cmdStatus(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: status <device>", errUsage)
	}
	dir, err := env.directory(ctx)
	if err != nil {
		return err
	}
	entry, err := dir.Status(ctx, args[0])
	if err != nil {
		return err
	}
	out := map[string]any{
		"id":         args[0],
		"status":     entry.Status.String(),
		"changed_at": entry.ChangedAt,
	}
	if env.redis != nil {
		ttl, err := env.redis.TTL(ctx, args[0])
		if err != nil {
			return err
		}
		if ttl > 0 {
			out["cache_ttl_seconds"] = int64(ttl / time.Second)
		}
	}
	return env.print(out)
}

func cmdDevices(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	online := fs.Bool("online", false, "only online devices")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return fmt.Errorf("%w: devices [-online]", errUsage)
	}

	dir, err := env.directory(ctx)
	if err != nil {
		return err
	}
	var devices []device.Device
	if *online {
		devices, err = dir.ListOnline(ctx)
	} else {
		devices, err = dir.List(ctx)
	}
	if err != nil {
		return err
	}
	return env.print(devices)
}

func cmdDiscover(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: discover", errUsage)
	}
	dir, err := env.directory(ctx)
	if err != nil {
		return err
	}
	pub, err := env.publisher()
	if err != nil {
		return err
	}
	n, err := homeassistant.Announce(ctx, dir, pub, env.log)
	if printErr := env.print(map[string]int{"announced": n}); printErr != nil {
		return printErr
	}
	return err
}

func cmdAlarm(_ context.Context, env *cliEnv, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: alarm <device> <type> <level> <value>", errUsage)
	}
	if err := device.ValidateID(args[0]); err != nil {
		return err
	}
	level := args[2]
	switch level {
	case homeassistant.AlarmInfo, homeassistant.AlarmWarning, homeassistant.AlarmError, homeassistant.AlarmCritical:
	default:
		return fmt.Errorf("%w: unknown alarm level %q", errUsage, level)
	}
	pub, err := env.publisher()
	if err != nil {
		return err
	}
	return pub.PublishDeviceAlarm(args[0], args[1], level, parseAlarmValue(args[3]))
}

// cmdRepublish publishes the latest telemetry of the named devices, or of
// every directory device, to their hub data topics.
func cmdRepublish(ctx context.Context, env *cliEnv, args []string) error {
	for _, id := range args {
		if err := device.ValidateID(id); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}
	store, err := env.influx()
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		dir, err := env.directory(ctx)
		if err != nil {
			return err
		}
		devices, err := dir.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			ids = append(ids, d.ID)
		}
	}

	batch := make(map[string]telemetry.Fields, len(ids))
	for _, id := range ids {
		samples, err := store.QueryLatest(ctx, id)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			continue
		}
		fields := make(telemetry.Fields, len(samples))
		for _, s := range samples {
			fields[s.Field] = s.Value
		}
		batch[id] = fields
	}

	pub, err := env.publisher()
	if err != nil {
		return err
	}
	sent, err := pub.PublishBatchDeviceData(batch)
	if printErr := env.print(map[string]int{"devices": len(batch), "sent": sent}); printErr != nil {
		return printErr
	}
	return err
}

// influx opens the telemetry store. Commands that need it fail when it is
// disabled in config.
func (e *cliEnv) influx() (*influxdb.Client, error) {
	client, err := influxdb.Connect(e.cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	e.onClose(client.Close)
	return client, nil
}

// directory opens the SQLite directory with the Redis cache when enabled.
func (e *cliEnv) directory(ctx context.Context) (*device.Directory, error) {
	db, err := database.Open(database.ConfigFrom(e.cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	e.onClose(db.Close)
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var cache device.StatusCache
	redisCache, err := rediscache.Connect(e.cfg.Redis)
	switch {
	case errors.Is(err, rediscache.ErrDisabled):
	case err != nil:
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	default:
		e.onClose(redisCache.Close)
		e.redis = redisCache
		cache = redisCache
	}

	dir := device.NewDirectory(device.NewSQLiteRepository(db.DB), cache, e.cfg.GetStatusTTL())
	dir.SetLogger(e.log)
	return dir, nil
}

// publisher connects to the broker under a distinct client ID so the CLI
// never takes over the service's session.
func (e *cliEnv) publisher() (*homeassistant.Publisher, error) {
	mqttCfg := e.cfg.MQTT
	mqttCfg.Broker.ClientID = fmt.Sprintf("%s-ctl-%d", mqttCfg.Broker.ClientID, os.Getpid())

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	e.onClose(client.Close)
	return homeassistant.NewPublisher(client, e.log), nil
}

func (e *cliEnv) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseWindow parses a start/stop pair and rejects empty or inverted ranges.
func parseWindow(startArg, stopArg string, now time.Time) (time.Time, time.Time, error) {
	start, err := parseTime(startArg, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	stop, err := parseTime(stopArg, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !stop.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: stop must be after start", errUsage)
	}
	return start, stop, nil
}

// parseTime accepts "now", a duration relative to now, or RFC 3339.
func parseTime(s string, now time.Time) (time.Time, error) {
	if s == "now" {
		return now, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q", errUsage, s)
	}
	return t, nil
}

// parseAlarmValue keeps numbers and booleans typed in the alarm payload.
func parseAlarmValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
