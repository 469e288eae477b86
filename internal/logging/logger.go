package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

const serviceName = "event-registration"

// GetLogger returns a JSON stdout logger, or a Loki shipping logger when url
// is set.  Both pick up attributes stored with AppendCtx.
func GetLogger(url string) *slog.Logger {
	if url == "" {
		return localLogger()
	}
	l, err := remoteLogger(url)
	if err != nil {
		local := localLogger()
		local.Error("loki logger unavailable, falling back to stdout", "error", err)
		return local
	}
	return l
}

func localLogger() *slog.Logger {
	return slog.New(&ContextHandler{Handler: slog.NewJSONHandler(os.Stdout, nil)}).With("service", serviceName)
}

func remoteLogger(url string) (*slog.Logger, error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, err
	}
	return slog.New(slogloki.Option{
		Level:  slog.LevelInfo,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			attrsFromContext,
		},
	}.NewLokiHandler()).With("service", serviceName), nil
}
