// Package ops resolves the process configuration. The result is read once at
// startup and handed to constructors; nothing re-reads it afterwards.
package ops

import (
	"strings"
	"time"

	"bookstrat/internal/audit"
	"bookstrat/internal/core"
	"bookstrat/internal/recorder"
	"bookstrat/internal/risk"
	"bookstrat/internal/schema"
	"bookstrat/internal/signal"
	"bookstrat/internal/venue"
	"bookstrat/pkg/conn"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

const EnvPrefix = "BOOKSTRAT"

const (
	VenuePaper = "paper"
	VenueKafka = "kafka"
)

// AuditConfig enables the relational audit trail when a database is configured.
// Connection and batching keys share the audit section.
type AuditConfig struct {
	DB    conn.Option  `mapstructure:",squash"`
	Batch audit.Config `mapstructure:",squash"`
}

func (c AuditConfig) Enabled() bool {
	return !c.DB.Empty()
}

// VenueConfig selects where intents go.
type VenueConfig struct {
	Kind  string            `mapstructure:"kind"`
	Paper venue.PaperConfig `mapstructure:"paper"`
	Kafka venue.KafkaConfig `mapstructure:"kafka"`
}

// FeedConfig points at the market-data websocket.
type FeedConfig struct {
	URL string `mapstructure:"url"`
}

// SnapshotConfig locates the position snapshot store. An empty dir disables it.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// ProfilingConfig enables continuous profiling when an address is set.
type ProfilingConfig struct {
	Address         string `mapstructure:"address"`
	ApplicationName string `mapstructure:"applicationName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry  *schema.Registry
	Risk      risk.Config
	Signal    signal.Config
	Dispatch  core.DispatcherConfig
	Journal   recorder.Config
	Audit     AuditConfig
	Venue     VenueConfig
	Feed      FeedConfig
	Snapshot  SnapshotConfig
	Profiling ProfilingConfig
}

// JournalEnabled reports whether a journal directory is configured.
func (l Loaded) JournalEnabled() bool {
	return l.Journal.Dir != ""
}

// fileConfig mirrors the config file layout. Decimal and enum values stay text
// here and are parsed by resolve.
type fileConfig struct {
	SymbolSource string   `mapstructure:"symbolSource"`
	Universe     []string `mapstructure:"universe"`
	Risk         struct {
		PositionLimit string `mapstructure:"positionLimit"`
	} `mapstructure:"risk"`
	Signal struct {
		OrderSize   string `mapstructure:"orderSize"`
		OrderType   string `mapstructure:"orderType"`
		TimeInForce string `mapstructure:"timeInForce"`
	} `mapstructure:"signal"`
	Dispatch  core.DispatcherConfig `mapstructure:"dispatch"`
	Journal   recorder.Config       `mapstructure:"journal"`
	Audit     AuditConfig           `mapstructure:"audit"`
	Venue     VenueConfig           `mapstructure:"venue"`
	Feed      FeedConfig            `mapstructure:"feed"`
	Snapshot  SnapshotConfig        `mapstructure:"snapshot"`
	Profiling ProfilingConfig       `mapstructure:"profiling"`
}

// Load reads the config file at path, if any, then applies BOOKSTRAT_* environment
// overrides and defaults. YAML, JSON and TOML are accepted.
func Load(path string) (Loaded, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	return resolve(v)
}

// Default resolves environment overrides and defaults only.
func Default() (Loaded, error) {
	return Load("")
}

// newViper registers a default for every key. Unmarshal only consults the
// environment for keys viper already knows about.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	journal := recorder.DefaultConfig("")
	defaults := map[string]any{
		"symbolSource":              schema.DefaultSymbolSource,
		"universe":                  []string{},
		"risk.positionLimit":        risk.DefaultPositionLimit.String(),
		"signal.orderSize":          "1",
		"signal.orderType":          schema.OrderTypeLimit.String(),
		"signal.timeInForce":        schema.TimeInForceDay.String(),
		"dispatch.laneQueueSize":    1024,
		"journal.dir":               "",
		"journal.prefix":            journal.Prefix,
		"journal.maxSegmentBytes":   journal.MaxSegmentBytes,
		"journal.maxSegmentAge":     5 * time.Minute,
		"journal.queueSize":         journal.QueueSize,
		"journal.bufferSize":        journal.BufferSize,
		"journal.flushEvery":        journal.FlushEvery,
		"journal.syncEvery":         journal.SyncEvery,
		"audit.dsn":                 "",
		"audit.host":                "",
		"audit.port":                0,
		"audit.user":                "",
		"audit.password":            "",
		"audit.database":            "",
		"audit.sslMode":             "",
		"audit.pool.maxOpen":        4,
		"audit.pool.maxIdle":        2,
		"audit.pool.maxLifetime":    30 * time.Minute,
		"audit.batchSize":           256,
		"audit.queueSize":           0,
		"audit.flushInterval":       200 * time.Millisecond,
		"venue.kind":                VenuePaper,
		"venue.paper.accountId":     "",
		"venue.paper.strategyId":    "",
		"venue.paper.clientId":      "",
		"venue.paper.autoFill":      true,
		"venue.kafka.brokers":       []string{},
		"venue.kafka.topic":         "order-intents",
		"venue.kafka.batchTimeout":  time.Duration(0),
		"feed.url":                  "",
		"snapshot.dir":              "",
		"profiling.address":         "",
		"profiling.applicationName": "bookstrat.trader",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func resolve(v *viper.Viper) (Loaded, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}

	registry, err := buildRegistry(fc.SymbolSource, splitList(fc.Universe))
	if err != nil {
		return Loaded{}, err
	}

	limit, err := decimal.NewFromString(fc.Risk.PositionLimit)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "parse risk.positionLimit")
	}
	if !limit.IsPositive() {
		return Loaded{}, errors.Errorf("risk.positionLimit must be > 0, got %s", limit)
	}

	sig, err := resolveSignal(fc.Signal.OrderSize, fc.Signal.OrderType, fc.Signal.TimeInForce)
	if err != nil {
		return Loaded{}, err
	}

	venueCfg, err := resolveVenue(fc.Venue)
	if err != nil {
		return Loaded{}, err
	}

	if fc.Dispatch.LaneQueueSize <= 0 {
		return Loaded{}, errors.Errorf("dispatch.laneQueueSize must be > 0, got %d", fc.Dispatch.LaneQueueSize)
	}

	return Loaded{
		Registry:  registry,
		Risk:      risk.Config{PositionLimit: limit},
		Signal:    sig,
		Dispatch:  fc.Dispatch,
		Journal:   fc.Journal,
		Audit:     fc.Audit,
		Venue:     venueCfg,
		Feed:      fc.Feed,
		Snapshot:  fc.Snapshot,
		Profiling: fc.Profiling,
	}, nil
}

func buildRegistry(source string, universe []string) (*schema.Registry, error) {
	reg := schema.NewRegistry(source)
	for _, sym := range universe {
		if _, err := reg.Add(sym); err != nil {
			return nil, errors.Wrap(err, "build universe")
		}
	}
	return reg, nil
}

func resolveSignal(orderSize, orderType, timeInForce string) (signal.Config, error) {
	size, err := decimal.NewFromString(orderSize)
	if err != nil {
		return signal.Config{}, errors.Wrap(err, "parse signal.orderSize")
	}
	if !size.IsPositive() {
		return signal.Config{}, errors.Errorf("signal.orderSize must be > 0, got %s", size)
	}

	var ot schema.OrderType
	if err := ot.UnmarshalText([]byte(orderType)); err != nil || ot == schema.OrderTypeUnknown {
		return signal.Config{}, errors.Errorf("unknown signal.orderType %q", orderType)
	}

	var tif schema.TimeInForce
	if err := tif.UnmarshalText([]byte(timeInForce)); err != nil || tif == schema.TimeInForceUnknown {
		return signal.Config{}, errors.Errorf("unknown signal.timeInForce %q", timeInForce)
	}

	return signal.Config{OrderSize: size, OrderType: ot, TimeInForce: tif}, nil
}

func resolveVenue(cfg VenueConfig) (VenueConfig, error) {
	cfg.Kind = strings.ToLower(cfg.Kind)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	switch cfg.Kind {
	case VenuePaper:
	case VenueKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return VenueConfig{}, errors.New("venue.kafka.brokers is empty")
		}
	default:
		return VenueConfig{}, errors.Errorf("unknown venue.kind %q", cfg.Kind)
	}
	return cfg, nil
}

// splitList accepts both list values and comma separated strings from the environment.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
