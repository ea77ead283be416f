package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/odvcencio/geodash/pkg/auth"
	"github.com/odvcencio/geodash/pkg/bridge"
	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/drive"
	"github.com/odvcencio/geodash/pkg/earthengine"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/sepal"
	"github.com/odvcencio/geodash/pkg/telemetry"
)

// Resources are the per-session clients owned by a registry record.
type Resources struct {
	Bridge  *bridge.Bridge
	Storage *sepal.Client
	Drive   *drive.Client
}

// Close closes every non-nil resource and joins their errors.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Bridge != nil {
		errs = append(errs, r.Bridge.Close())
	}
	if r.Storage != nil {
		errs = append(errs, r.Storage.Close())
	}
	if r.Drive != nil {
		errs = append(errs, r.Drive.Close())
	}
	return errors.Join(errs...)
}

// Factory builds the resources of a session.
type Factory interface {
	// NewSession builds the resources for identity. On error nothing built
	// is left open.
	NewSession(ctx context.Context, identity, module string, h auth.Headers) (*Resources, error)
	// NewFallback builds the single-tenant bridge used when a connection has
	// no session.
	NewFallback() (*bridge.Bridge, error)
}

// DefaultFactory wires the HTTP clients from configuration.
type DefaultFactory struct {
	Config *config.Config
	Logger *observability.Logger
	Hub    *telemetry.Hub
	// HTTPClient is used for credential refreshes. nil means http.DefaultClient.
	HTTPClient *http.Client

	EarthEngineOptions []earthengine.ClientOption
	SepalOptions       []sepal.Option
	DriveOptions       []drive.Option
}

// NewDefaultFactory returns a factory for cfg.
func NewDefaultFactory(cfg *config.Config, logger *observability.Logger, hub *telemetry.Hub) *DefaultFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.Default()
	}
	return &DefaultFactory{Config: cfg, Logger: logger, Hub: hub}
}

func (f *DefaultFactory) NewSession(ctx context.Context, identity, module string, h auth.Headers) (*Resources, error) {
	ts, err := auth.NewTokenSource(context.WithoutCancel(ctx), h, f.HTTPClient)
	if err != nil {
		return nil, err
	}

	eeOpts := append([]earthengine.ClientOption{
		earthengine.WithProject(h.Credentials.ProjectID),
		earthengine.WithLogger(f.Logger.WithComponent("earthengine").WithSession(identity)),
	}, f.EarthEngineOptions...)
	client := earthengine.NewClient(ts, f.Config.EarthEngine, eeOpts...)

	res := &Resources{}
	res.Bridge = bridge.New(
		bridge.WithSession(client),
		bridge.WithConfig(f.Config.Bridge),
		bridge.WithLogger(f.Logger),
		bridge.WithHub(f.Hub),
		bridge.WithSessionID(identity),
	)

	sepalCfg := f.Config.Sepal
	if h.Host != "" {
		sepalCfg.Host = h.Host
	}
	sepalOpts := append([]sepal.Option{
		sepal.WithLogger(f.Logger.WithComponent("sepal").WithSession(identity)),
	}, f.SepalOptions...)
	if res.Storage, err = sepal.NewClient(ctx, h.SessionID, module, sepalCfg, sepalOpts...); err != nil {
		_ = res.Close()
		return nil, err
	}

	driveOpts := append([]drive.Option{
		drive.WithLogger(f.Logger.WithComponent("drive").WithSession(identity)),
	}, f.DriveOptions...)
	res.Drive = drive.NewClient(ts, f.Config.Drive, driveOpts...)
	return res, nil
}

func (f *DefaultFactory) NewFallback() (*bridge.Bridge, error) {
	path := f.Config.EarthEngine.CredentialsPath
	if path == "" {
		return nil, gderrors.New(gderrors.ErrCodeConfigInvalid, "no local credentials path for the fallback bridge")
	}
	creds, err := auth.LoadCredentials(path)
	if err != nil {
		return nil, err
	}

	eeOpts := append([]earthengine.ClientOption{
		earthengine.WithProject(creds.ProjectID),
		earthengine.WithLogger(f.Logger.WithComponent("earthengine")),
	}, f.EarthEngineOptions...)
	client := earthengine.NewClient(auth.FileTokenSource(path), f.Config.EarthEngine, eeOpts...)

	return bridge.New(
		bridge.WithLegacy(earthengine.NewLegacy(client)),
		bridge.WithConfig(f.Config.Bridge),
		bridge.WithLogger(f.Logger),
		bridge.WithHub(f.Hub),
		bridge.WithSessionID("fallback"),
	), nil
}
