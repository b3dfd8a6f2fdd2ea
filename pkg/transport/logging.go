package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/auth"
)

// Logging returns middleware that emits one structured log entry per chat
// completion with request ID, client, model, stream flag, tool count and
// duration.
// HTTP status codes are recorded by the metrics middleware instead.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateChatCompletion(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Int("tools", len(req.Tools)),
				slog.Duration("duration", time.Since(start)),
			}
			if id := auth.IdentityFromContext(ctx); id != nil {
				attrs = append(attrs, slog.String("client", id.Subject), slog.String("auth", id.Method))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
