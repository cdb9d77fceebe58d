package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
)

const (
	syncLockName = "devices-sync"
	syncLockTTL  = 30 * time.Second
)

// ErrSyncUnavailable is returned by Sync when no device server or token is configured.
var ErrSyncUnavailable = errors.New("device server sync is not configured")

// Locker runs fn while holding a named lock.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error
}

// Options configures a Catalog.
type Options struct {
	File      string
	VaultDir  string
	ServerURL string
	Token     string
	Timeout   time.Duration
}

// Catalog owns the device configuration: the encrypted copy fetched from the
// device server, with the plain devices file as fallback.
type Catalog struct {
	file   string
	vault  *Vault
	remote *RemoteClient
	token  string
	locker Locker
	log    zerolog.Logger

	syncMu  sync.Mutex
	mu      sync.RWMutex
	current *Config
}

// NewCatalog builds a catalog. locker may be nil.
func NewCatalog(opts Options, locker Locker, log zerolog.Logger) *Catalog {
	c := &Catalog{
		file:   opts.File,
		vault:  NewVault(opts.VaultDir),
		token:  strings.TrimSpace(opts.Token),
		locker: locker,
		log:    log.With().Str("component", "device-catalog").Logger(),
	}
	if strings.TrimSpace(opts.ServerURL) != "" {
		c.remote = NewRemoteClient(opts.ServerURL, opts.Timeout, log)
	}
	return c
}

// Boot persists a configured token, fetches the device document once when no
// cached copy exists, and loads the result.
func (c *Catalog) Boot(ctx context.Context) (Config, error) {
	token := c.bearerToken()
	if token != "" && c.remote != nil && !c.vault.Has(credentialFile) {
		c.log.Info().Msg("no cached device config, fetching from device server")
		if _, err := c.Sync(ctx); err != nil {
			c.log.Warn().Err(err).Msg("initial device config fetch failed")
		}
	}
	return c.Load(ctx)
}

// Load reads the cached device document, falling back to the devices file.
// A missing file yields an empty configuration.
func (c *Catalog) Load(_ context.Context) (Config, error) {
	data, source, err := c.read()
	if err != nil {
		return Config{}, err
	}
	cfg, err := Decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", source, err)
	}
	c.set(cfg)
	c.log.Info().Str("source", source).Int("devices", len(cfg.Devices)).Msg("device config loaded")
	return cfg, nil
}

// Current returns the last loaded configuration, loading it on first use.
func (c *Catalog) Current(ctx context.Context) (Config, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur != nil {
		return *cur, nil
	}
	return c.Load(ctx)
}

// Devices returns the descriptors of the current configuration.
func (c *Catalog) Devices(ctx context.Context) ([]session.Descriptor, error) {
	cfg, err := c.Current(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Devices, nil
}

// Sync fetches the device document from the device server, stores it in the
// vault and makes it current.
func (c *Catalog) Sync(ctx context.Context) (Config, error) {
	token := c.bearerToken()
	if c.remote == nil || token == "" {
		return Config{}, ErrSyncUnavailable
	}

	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	var cfg Config
	run := func() error {
		data, err := c.remote.Fetch(ctx, token)
		if err != nil {
			return err
		}
		decoded, err := Decode(data)
		if err != nil {
			return err
		}
		if err := c.vault.Seal(credentialFile, data); err != nil {
			return err
		}
		cfg = decoded
		return nil
	}

	var err error
	if c.locker != nil {
		err = c.locker.WithLock(ctx, syncLockName, syncLockTTL, run)
	} else {
		err = run()
	}
	if err != nil {
		return Config{}, err
	}

	c.set(cfg)
	c.log.Info().Int("devices", len(cfg.Devices)).Msg("device config synced")
	return cfg, nil
}

func (c *Catalog) read() ([]byte, string, error) {
	data, err := c.vault.Open(credentialFile)
	if err == nil {
		return data, "vault", nil
	}
	if !errors.Is(err, ErrVaultEmpty) {
		return nil, "vault", err
	}

	if strings.TrimSpace(c.file) == "" {
		return nil, "none", nil
	}
	data, err = os.ReadFile(c.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Str("file", c.file).Msg("devices file not found, starting without devices")
			return nil, c.file, nil
		}
		return nil, c.file, fmt.Errorf("read devices file: %w", err)
	}
	return data, c.file, nil
}

func (c *Catalog) set(cfg Config) {
	c.mu.Lock()
	c.current = &cfg
	c.mu.Unlock()
}

// bearerToken returns the configured token, sealing it for later runs, or the
// previously sealed one.
func (c *Catalog) bearerToken() string {
	if c.token != "" {
		if !c.vault.Has(tokenFile) {
			if err := c.vault.Seal(tokenFile, []byte(c.token)); err != nil {
				c.log.Warn().Err(err).Msg("store device server token")
			}
		}
		return c.token
	}
	data, err := c.vault.Open(tokenFile)
	if err != nil {
		if !errors.Is(err, ErrVaultEmpty) {
			c.log.Warn().Err(err).Msg("load device server token")
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
