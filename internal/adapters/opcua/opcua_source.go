package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

// Snapshot fields a node can be mapped to.
const (
	FieldRPM          = "motor.rpm"
	FieldTorque       = "motor.torque"
	FieldLoad         = "motor.load"
	FieldTemperature  = "motor.temperature"
	FieldPower        = "motor.power"
	FieldMainFreq     = "vibration.main_freq"
	FieldAmplitude    = "vibration.amplitude"
	FieldRMS          = "vibration.rms"
	FieldImpulseCount = "vibration.impulse_count"
	FieldHealthIndex  = "vibration.health_index"
	FieldToolWear     = "vibration.tool_wear"
)

var knownFields = map[string]bool{
	FieldRPM: true, FieldTorque: true, FieldLoad: true, FieldTemperature: true, FieldPower: true,
	FieldMainFreq: true, FieldAmplitude: true, FieldRMS: true, FieldImpulseCount: true,
	FieldHealthIndex: true, FieldToolWear: true,
}

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string       `yaml:"endpoint"`
	Username        string       `yaml:"username"`
	Password        string       `yaml:"password"`
	SecurityMode    string       `yaml:"security_mode"`
	SecurityPolicy  string       `yaml:"security_policy"`
	ApplicationName string       `yaml:"application_name"`
	Nodes           []NodeConfig `yaml:"nodes"`
}

// NodeConfig maps one OPC UA node onto a snapshot field. Scale of zero
// means 1.
type NodeConfig struct {
	NodeID string  `yaml:"node_id"`
	Field  string  `yaml:"field"`
	Scale  float64 `yaml:"scale"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "motordash"
	}
	for i := range c.Nodes {
		if c.Nodes[i].Scale == 0 {
			c.Nodes[i].Scale = 1
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		if !knownFields[n.Field] {
			return fmt.Errorf("node %q: unknown field %q", n.NodeID, n.Field)
		}
		if seen[n.Field] {
			return fmt.Errorf("field %q mapped more than once", n.Field)
		}
		seen[n.Field] = true
	}
	return nil
}

type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, cfg Config) (nodeReader, error)

// Source reads every configured node once per Fetch. The session is opened
// on first use and dropped after a failed read so the next poll reconnects.
type Source struct {
	cfg     Config
	nodeIDs []*ua.NodeID
	dial    dialFunc

	mu     sync.Mutex
	reader nodeReader
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids := make([]*ua.NodeID, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		ids[i] = ua.MustParseNodeID(n.NodeID)
	}
	return &Source{cfg: cfg, nodeIDs: ids, dial: dialClient}, nil
}

func (s *Source) Name() string { return "opcua" }

func (s *Source) Fetch(ctx context.Context) (*domain.LatestSnapshot, error) {
	reader, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	req := &ua.ReadRequest{
		NodesToRead:        make([]*ua.ReadValueID, len(s.nodeIDs)),
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	}
	for i, id := range s.nodeIDs {
		req.NodesToRead[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}

	resp, err := reader.Read(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			s.drop(reader)
		}
		return nil, fmt.Errorf("opcua read: %w", err)
	}
	if len(resp.Results) != len(s.cfg.Nodes) {
		return nil, fmt.Errorf("opcua read: expected %d results, got %d", len(s.cfg.Nodes), len(resp.Results))
	}

	values := make(map[string]float64, len(resp.Results))
	var latest time.Time
	for i, dv := range resp.Results {
		node := s.cfg.Nodes[i]
		if dv == nil || dv.Status != ua.StatusOK {
			continue
		}
		fv, ok := variantToFloat(dv.Value)
		if !ok {
			continue
		}
		values[node.Field] = fv * node.Scale
		if ts := dataTimestamp(dv); ts.After(latest) {
			latest = ts
		}
	}
	return buildSnapshot(values, latest), nil
}

// Close ends the session if one is open.
func (s *Source) Close() error {
	s.mu.Lock()
	reader := s.reader
	s.reader = nil
	s.mu.Unlock()
	if reader == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reader.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Source) session(ctx context.Context) (nodeReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return s.reader, nil
	}
	reader, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.reader = reader
	return reader, nil
}

func (s *Source) drop(reader nodeReader) {
	s.mu.Lock()
	if s.reader != reader {
		s.mu.Unlock()
		return
	}
	s.reader = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = reader.Close(ctx)
}

// buildSnapshot leaves a section nil when none of its fields were read, so
// an unreadable device looks like "no data yet" rather than zeros.
func buildSnapshot(values map[string]float64, ts time.Time) *domain.LatestSnapshot {
	snap := &domain.LatestSnapshot{}
	if !ts.IsZero() {
		snap.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	}
	has := func(prefix string) bool {
		for k := range values {
			if strings.HasPrefix(k, prefix) {
				return true
			}
		}
		return false
	}
	if has("motor.") {
		snap.MotorStatus = &domain.MotorStatus{
			RPM:         values[FieldRPM],
			Torque:      values[FieldTorque],
			Load:        values[FieldLoad],
			Temperature: values[FieldTemperature],
			Power:       values[FieldPower],
		}
	}
	if has("vibration.") {
		snap.VibrationMetrics = &domain.VibrationMetrics{
			MainFreq:     values[FieldMainFreq],
			Amplitude:    values[FieldAmplitude],
			RMS:          values[FieldRMS],
			ImpulseCount: int64(values[FieldImpulseCount]),
			HealthIndex:  values[FieldHealthIndex],
			ToolWear:     values[FieldToolWear],
		}
	}
	return snap
}

func dataTimestamp(dv *ua.DataValue) time.Time {
	if !dv.ServerTimestamp.IsZero() {
		return dv.ServerTimestamp
	}
	return dv.SourceTimestamp
}

func dialClient(ctx context.Context, cfg Config) (nodeReader, error) {
	client, err := opcua.NewClient(cfg.Endpoint, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func clientOptions(cfg Config) []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(cfg.SecurityPolicy)),
		opcua.ApplicationName(cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(cfg.Username, cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.TelemetrySource = (*Source)(nil)
