package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goccy/go-yaml"
)

var ErrInvalidCycle = errors.New("invalid cycle config")

const (
	DefaultMinCycleDuration = 4 * time.Second
	DefaultMaxCycleDuration = 6 * time.Second
	DefaultCycleTick        = time.Millisecond
	DefaultHookTimeout      = 5 * time.Second
	DefaultArrivalInterval  = 3 * time.Second
	DefaultCrossingTime     = 500 * time.Millisecond
)

type Config struct {
	Cycle          *CycleConfig        `yaml:"cycle"`
	Responder      *ResponderConfig    `yaml:"responder"`
	Intersection   *IntersectionConfig `yaml:"intersection"`
	Hooks          []*HookConfig       `yaml:"hooks"`
	StatusInterval time.Duration       `yaml:"status_interval"`
}

// CycleConfig controls the timing of a Cycle.
type CycleConfig struct {
	// MinDuration is the shortest time a phase lasts.
	// Defaults to 4s.
	MinDuration time.Duration `yaml:"min_duration"`

	// MaxDuration is the exclusive upper bound of a phase duration.
	// Defaults to 6s.
	MaxDuration time.Duration `yaml:"max_duration"`

	// Tick is how long the driver sleeps between checks of the elapsed
	// time. It bounds CPU usage and the precision of transitions.
	// Defaults to 1ms.
	Tick time.Duration `yaml:"tick"`

	// RedrawEachTick draws a new random threshold on every tick instead of
	// once per transition. The realized durations then skew towards
	// MinDuration.
	RedrawEachTick bool `yaml:"redraw_each_tick"`

	// Initial is the phase the cycle starts in, "red" or "green".
	// Defaults to red.
	Initial string `yaml:"initial"`
}

type ResponderConfig struct {
	Addr string `yaml:"addr"`
}

type IntersectionConfig struct {
	Vehicles        int           `yaml:"vehicles"`
	ArrivalInterval time.Duration `yaml:"arrival_interval"`
	CrossingTime    time.Duration `yaml:"crossing_time"`
}

type HookConfig struct {
	Name    string        `yaml:"name"`
	On      string        `yaml:"on"`
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

func NewCycleConfig() *CycleConfig {
	return &CycleConfig{
		MinDuration: DefaultMinCycleDuration,
		MaxDuration: DefaultMaxCycleDuration,
		Tick:        DefaultCycleTick,
	}
}

// setDefaults fills zero fields with the documented defaults.
func (c *CycleConfig) setDefaults() {
	if c.MinDuration == 0 {
		c.MinDuration = DefaultMinCycleDuration
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxCycleDuration
	}
	if c.Tick == 0 {
		c.Tick = DefaultCycleTick
	}
}

func (c *CycleConfig) Validate() error {
	var errs error
	if c.MinDuration <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: min_duration must be positive: %s", ErrInvalidCycle, c.MinDuration))
	}
	if c.MaxDuration < c.MinDuration {
		errs = errors.Join(errs, fmt.Errorf("%w: max_duration %s is less than min_duration %s", ErrInvalidCycle, c.MaxDuration, c.MinDuration))
	}
	if c.Tick <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: tick must be positive: %s", ErrInvalidCycle, c.Tick))
	}
	if _, err := c.InitialPhase(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

func (c *CycleConfig) InitialPhase() (Phase, error) {
	if c.Initial == "" {
		return PhaseRed, nil
	}
	return ParsePhase(c.Initial)
}

func NewConfig() *Config {
	return &Config{
		Cycle:     NewCycleConfig(),
		Responder: &ResponderConfig{},
		Intersection: &IntersectionConfig{
			ArrivalInterval: DefaultArrivalInterval,
			CrossingTime:    DefaultCrossingTime,
		},
	}
}

// LoadConfig reads the YAML config from src. An empty src returns the
// defaults.
func LoadConfig(ctx context.Context, src string) (*Config, error) {
	config := NewConfig()
	if src != "" {
		b, err := loadURL(ctx, src)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(b, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", src, err)
		}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Cycle == nil {
		c.Cycle = NewCycleConfig()
	}
	c.Cycle.setDefaults()
	if c.Responder == nil {
		c.Responder = &ResponderConfig{}
	}
	if c.Intersection == nil {
		c.Intersection = &IntersectionConfig{}
	}
	if c.Intersection.ArrivalInterval <= 0 {
		c.Intersection.ArrivalInterval = DefaultArrivalInterval
	}
	if c.Intersection.CrossingTime <= 0 {
		c.Intersection.CrossingTime = DefaultCrossingTime
	}
	for _, h := range c.Hooks {
		if h.Timeout == 0 {
			h.Timeout = DefaultHookTimeout
		}
	}

	errs := c.Cycle.Validate()
	if c.Intersection.Vehicles < 0 {
		errs = errors.Join(errs, fmt.Errorf("intersection.vehicles must not be negative: %d", c.Intersection.Vehicles))
	}
	if c.StatusInterval < 0 {
		errs = errors.Join(errs, fmt.Errorf("status_interval must not be negative: %s", c.StatusInterval))
	}
	for i, h := range c.Hooks {
		if h.Command == "" {
			errs = errors.Join(errs, fmt.Errorf("hooks[%d]: command is required", i))
		}
		if h.On != "" {
			if _, err := ParsePhase(h.On); err != nil {
				errs = errors.Join(errs, fmt.Errorf("hooks[%d]: %w", i, err))
			}
		}
	}
	return errs
}

func loadURL(ctx context.Context, s string) ([]byte, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", s, err)
	}
	switch u.Scheme {
	case "http", "https":
		return loadHTTP(ctx, u)
	case "file", "": // empty scheme is treated as file
		return os.ReadFile(u.Path)
	case "s3":
		return loadS3(ctx, u)
	default:
		return nil, fmt.Errorf("invalid url %s: scheme must be http, https, file, or s3", s)
	}
}

func loadHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http get failed: %s %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// s3ObjectGetter is the part of the s3 client used to fetch config files.
type s3ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var newS3Client = func(ctx context.Context) (s3ObjectGetter, error) {
	awscfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awscfg), nil
}

func loadS3(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 url %s: bucket and key are required", u)
	}
	svc, err := newS3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object failed: %s: %w", u, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
