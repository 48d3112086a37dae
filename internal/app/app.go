// Package app wires the client: session store, session context, API client, telemetry and the
// registration, enrollment and catalog services.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/apiclient"
	catalogservice "fxstreampro/client/internal/catalog/service"
	"fxstreampro/client/internal/config"
	"fxstreampro/client/internal/db"
	"fxstreampro/client/internal/enrollment/followup"
	enrollmentservice "fxstreampro/client/internal/enrollment/service"
	"fxstreampro/client/internal/health"
	regdomain "fxstreampro/client/internal/registration/domain"
	regservice "fxstreampro/client/internal/registration/service"
	"fxstreampro/client/internal/security"
	"fxstreampro/client/internal/session/repository"
	sessionservice "fxstreampro/client/internal/session/service"
	"fxstreampro/client/internal/telemetry"
	telemetrydomain "fxstreampro/client/internal/telemetry/domain"
	telemetryotel "fxstreampro/client/internal/telemetry/otel"
	"fxstreampro/client/internal/telemetry/producer"
)

// drainTimeout bounds how long Close waits for hooks and telemetry.
const drainTimeout = 5 * time.Second

// Deps holds optional overrides. Zero values mean "build from config".
type Deps struct {
	// Store replaces the configured session store.
	Store repository.Repository
	// Opener shows the follow-up form. If nil, the default browser is used, printing to stdout
	// when no browser can be started.
	Opener followup.Opener
	// Events replaces the configured activity event emitters.
	Events telemetry.EventEmitter
}

// App is a fully wired client.
type App struct {
	Config       *config.Config
	Store        repository.Repository
	Session      *sessionservice.Manager
	API          *apiclient.Client
	Registration *regservice.Flow
	Enrollment   *enrollmentservice.Action
	Catalog      *catalogservice.Catalog
	Health       *health.Checker

	events  telemetry.EventEmitter
	closers []func(context.Context) error
}

// New builds the client from cfg and rehydrates the session.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	a.Health = health.NewChecker()

	store := deps.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	a.Store = store
	a.Health.Add("session store", func(ctx context.Context) error {
		_, _, err := store.Get(ctx, "healthcheck")
		return err
	})

	a.Session = sessionservice.NewManager(store)
	if err := a.Session.Rehydrate(ctx); err != nil {
		return nil, fmt.Errorf("rehydrate session: %w", err)
	}

	events := deps.Events
	if events == nil {
		var err error
		events, err = a.buildTelemetry(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	a.events = events

	api, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.Timeout()),
		apiclient.WithTokenSource(a.Session),
	)
	if err != nil {
		return nil, err
	}
	a.API = api
	a.Health.Add("api", func(ctx context.Context) error {
		var batches []map[string]any
		return api.GetJSON(ctx, catalogservice.PathPublicBatches, &batches)
	})

	variant, err := regdomain.ParseVariant(cfg.SignupVariant)
	if err != nil {
		return nil, err
	}
	a.Registration = regservice.NewFlow(variant, api, a.Session, events)
	if _, err := a.Registration.Resume(ctx); err != nil {
		return nil, err
	}

	opener := deps.Opener
	if opener == nil {
		opener = followup.WithFallback(followup.NewBrowserOpener(), followup.NewPrintOpener(os.Stdout))
	}
	a.Enrollment = enrollmentservice.NewAction(api, a.Session, events, followup.OpenFormHook(opener, cfg.FollowUpURL))
	a.Catalog = catalogservice.NewCatalog(api, a.Session)

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreFile:
		var sealer *security.Sealer
		if cfg.SessionPassphrase != "" {
			sealer = security.NewSealer(cfg.SessionPassphrase)
		}
		return repository.NewFileStore(cfg.SessionFilePath(), sealer), nil
	case config.StorePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return conn.Close() })
		a.Health.Add("postgres", health.PingProbe(conn))
		return repository.NewPostgresStore(conn, cfg.SessionNamespace), nil
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		return repository.NewDynamoStore(client, cfg.DynamoDBTable, cfg.SessionNamespace), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

// buildTelemetry installs the OTel providers and returns the activity emitters that are configured.
func (a *App) buildTelemetry(ctx context.Context, cfg *config.Config) (telemetry.EventEmitter, error) {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, providers.Shutdown)

	var emitters []telemetry.EventEmitter
	if cfg.OTLPEndpoint != "" {
		emitters = append(emitters, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	}
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.KafkaTopic); p != nil {
		emitters = append(emitters, p)
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
	}
	return telemetry.Multi(emitters...), nil
}

// Logout ends the session, clears it from the store and returns the signup flow and the
// enrollment action to their signed-out state.
func (a *App) Logout(ctx context.Context) error {
	userID, _ := a.Session.UserID()
	role := a.Session.Role()
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	if a.Enrollment != nil {
		a.Enrollment.Reset()
	}
	if a.Registration != nil {
		a.Registration.Reset()
	}
	if userID != "" {
		event := telemetrydomain.NewActivityEvent(telemetrydomain.EventSignedOut)
		event.UserID = userID
		event.Role = string(role)
		telemetry.EmitAsync(a.events, ctx, event)
	}
	return nil
}

// Close waits briefly for after-settle hooks and in-flight telemetry, then releases resources in
// reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if a.Enrollment != nil {
		done := make(chan struct{})
		go func() {
			a.Enrollment.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-waitCtx.Done():
			log.Warn().Msg("app: gave up waiting for after-enrollment hooks")
		}
	}
	if err := telemetry.Drain(waitCtx); err != nil {
		log.Warn().Err(err).Msg("app: gave up waiting for activity events")
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
