package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/config"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/policy"
	"github.com/openfroyo/archetype/pkg/prompt"
	"github.com/openfroyo/archetype/pkg/repository"
	"github.com/openfroyo/archetype/pkg/stores"
	"github.com/openfroyo/archetype/pkg/telemetry"
)

// app holds what a command needs once the configuration is loaded.
type app struct {
	cfg     *config.Config
	cfgFile string
	tel     *telemetry.Telemetry
	store   *stores.SQLiteStore
	logger  zerolog.Logger
}

// setup loads the configuration and starts telemetry and, when history is
// enabled, the store. Callers must call close.
func setup(ctx context.Context) (*app, error) {
	cfg, file, err := config.Load(ctx, config.LoadOptions{ConfigFile: configPath})
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryFor(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	a := &app{
		cfg:     cfg,
		cfgFile: file,
		tel:     tel,
		logger:  tel.Logger.Zerolog(),
	}
	a.logger.Debug().Str("config", file).Msg("Configuration loaded")

	if cfg.History.Enabled {
		a.openStore(ctx)
	}
	return a, nil
}

// openStore opens the history store. History is optional, so failures only
// leave a.store nil.
func (a *app) openStore(ctx context.Context) {
	path := a.cfg.DatabasePath()
	store, err := stores.Open(ctx, path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("History disabled: cannot open store")
		return
	}
	if err := store.HealthCheck(ctx); err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("History disabled: store is unhealthy")
		_ = store.Close()
		return
	}
	a.store = store
	a.pruneHistory(ctx)
}

func (a *app) pruneHistory(ctx context.Context) {
	if a.cfg.History.Retention <= 0 {
		return
	}
	n, err := a.store.PruneRuns(ctx, time.Now().Add(-a.cfg.History.Retention))
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to prune history")
		return
	}
	if n > 0 {
		a.logger.Debug().Int64("runs", n).Msg("Pruned history")
	}
}

// close flushes telemetry and closes the store.
func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// operation starts a traced, timed operation carrying the app's telemetry.
// Callers must End it.
func (a *app) operation(ctx context.Context, name string, attrs ...attribute.KeyValue) *telemetry.InstrumentedContext {
	return telemetry.StartOperation(a.tel.WithContext(ctx), name, attrs...)
}

func (a *app) repository() *repository.Repository {
	return repository.New(a.cfg.LocalRepository, a.logger)
}

// sources builds the catalog sources: specs, or the configured ones, plus
// the crawled index when the store is open.
func (a *app) sources(specs []string) ([]engine.CatalogSource, error) {
	if len(specs) == 0 {
		specs = a.cfg.Catalogs
	}
	var out []engine.CatalogSource
	useIndex := a.store != nil
	for _, spec := range specs {
		if spec == stores.SourceIndex {
			continue
		}
		s, err := catalog.NewSource(spec, a.cfg.LocalRepository)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if useIndex {
		out = append(out, a.store.CatalogSource())
	}
	return out, nil
}

// policies returns the policy engine, or nil when policies are disabled.
func (a *app) policies(ctx context.Context) (*policy.Engine, error) {
	if !a.cfg.Policy.Enabled {
		return nil, nil
	}
	return a.loadPolicies(ctx)
}

// loadPolicies builds a policy engine with the built-in and configured
// policies, whether or not policies are enabled. The policy.enable and
// policy.disable lists are applied last.
func (a *app) loadPolicies(ctx context.Context) (*policy.Engine, error) {
	e, err := policy.NewEngine(a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start policy engine: %w", err)
	}
	if len(a.cfg.Policy.Paths) > 0 {
		if err := e.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range a.cfg.Policy.Enable {
		if err := e.EnablePolicy(name); err != nil {
			a.logger.Warn().Err(err).Msg("Ignoring policy.enable entry")
		}
	}
	for _, name := range a.cfg.Policy.Disable {
		if err := e.DisablePolicy(name); err != nil {
			a.logger.Warn().Err(err).Msg("Ignoring policy.disable entry")
		}
	}
	return e, nil
}

// configFile is the file configuration changes are written to: the loaded
// one, or archetype.yaml in the default directory.
func (a *app) configFile() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return filepath.Join(config.DefaultDir(), config.FileName)
}

// prompter returns an interactive prompter, or nil in batch mode.
func (a *app) prompter(interactive bool) engine.Prompter {
	if !interactive {
		return nil
	}
	return prompt.NewSurvey()
}

// audit records a maintenance action; failures are only logged.
func (a *app) audit(ctx context.Context, action, target string, details interface{}) {
	if a.store == nil {
		return
	}
	entry := &stores.AuditEntry{
		Action:    action,
		Actor:     actor(),
		TargetID:  &target,
		Timestamp: time.Now(),
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			s := string(data)
			entry.Details = &s
		}
	}
	if err := a.store.CreateAuditEntry(ctx, entry); err != nil {
		a.logger.Warn().Err(err).Str("action", action).Msg("Failed to record audit entry")
	}
}

func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDefines turns key=value pairs into a map.
func parseDefines(defines []string) (map[string]string, error) {
	out := make(map[string]string, len(defines))
	for _, d := range defines {
		k, v, ok := strings.Cut(d, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", d)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// withApp runs fn with a loaded app and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	if err := fn(a); err != nil {
		log.Debug().Err(err).Msg("Command failed")
		return err
	}
	return nil
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
