package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/Amund211/gamegate/internal/config"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

var uuidRx = regexp.MustCompile(`[0-9a-f]{8}-?([0-9a-f]{4}-?){3}[0-9a-f]{12}`)
var hostRx = regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`)
var gameIDRx = regexp.MustCompile(`\b[a-z]+:\d+-\d+:\d{3}\b`)
var catalogKeyRx = regexp.MustCompile(`\b[a-z]+:\d+-\d+\b`)

// sanitizeError strips ids and addresses so that equal failures share a fingerprint
func sanitizeError(err string) string {
	err = uuidRx.ReplaceAllString(err, "<uuid>")
	err = hostRx.ReplaceAllString(err, "<host>")
	err = gameIDRx.ReplaceAllString(err, "<gameId>")
	err = catalogKeyRx.ReplaceAllString(err, "<catalog>")
	return err
}

func Report(ctx context.Context, err error, extras ...map[string]string) {
	if err == nil {
		err = errors.New("No error provided")
	}

	hub := sentry.GetHubFromContext(ctx)
	logger := logging.FromContext(ctx)
	if hub == nil {
		logger.WarnContext(ctx, "Failed to get Sentry hub from context", slog.String("error", err.Error()), slog.Any("extras", extras))
		return
	}

	logger.ErrorContext(
		ctx,
		"Reporting error to Sentry",
		slog.String("error", err.Error()),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		meta := MetaFromContext(ctx)
		scope.SetTags(meta.tags)
		for key, value := range meta.extras {
			scope.SetExtra(key, value)
		}
		if meta.userID != "" {
			scope.SetUser(sentry.User{
				ID: meta.userID,
			})
		}
		if !meta.startedAt.IsZero() {
			scope.SetExtra("secondsSinceStart", time.Since(meta.startedAt).Seconds())
		}

		for _, extra := range extras {
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

// Detached returns a context for work that outlives the request, like a session's
// background reloads. It keeps the logger, the reporting meta and the Sentry
// hub, but is never canceled.
func Detached(ctx context.Context) context.Context {
	detached := logging.Detached(ctx)
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		detached = sentry.SetHubOnContext(detached, hub.Clone())
	}
	return detached
}

func addMetaMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "<missing>"
		}
		methodPath := fmt.Sprintf("%s %s", r.Method, r.URL.Path)

		ctx = AddTagsToContext(ctx,
			map[string]string{
				"userAgent":  userAgent,
				"methodPath": methodPath,
			},
		)
		if userID := r.Header.Get("X-User-Id"); userID != "" {
			ctx = SetUserIDInContext(ctx, userID)
		}

		ctx = setStartedAtInContext(ctx, time.Now())

		next(w, r.WithContext(ctx))
	}
}

func InitSentryMiddleware(sentryDSN string, environment string) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
	})
	if err != nil {
		return nil, nil, err
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{})

	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		withMeta := addMetaMiddleware(next)
		return sentryHandler.HandleFunc(withMeta)
	}

	flush := func() {
		sentry.Flush(5 * time.Second)
	}

	return middleware, flush, nil
}

func NewSentryMiddlewareOrMock(conf config.Config) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	if conf.SentryDSN() != "" {
		environment := "production"
		switch {
		case conf.IsStaging():
			environment = "staging"
		case conf.IsDevelopment():
			environment = "development"
		}
		return InitSentryMiddleware(conf.SentryDSN(), environment)
	}

	if conf.IsDevelopment() {
		middleware := func(next http.HandlerFunc) http.HandlerFunc {
			return addMetaMiddleware(next)
		}
		flush := func() {}
		return middleware, flush, nil
	}

	return nil, nil, fmt.Errorf("Missing Sentry DSN in non-development environment")
}
