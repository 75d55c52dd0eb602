package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Client sends analysis requests to the engine service, starting or
// restarting it as needed, and falls back to the one-shot command line when
// the service cannot be used.
type Client struct {
	svc     *Service
	oneShot *OneShot
	logger  *slog.Logger
}

// NewClient returns a client over svc. oneShot may be nil to disable the
// fallback.
func NewClient(svc *Service, oneShot *OneShot) *Client {
	return &Client{svc: svc, oneShot: oneShot, logger: svc.logger}
}

// Analyze implements domain.EngineClient.
func (c *Client) Analyze(ctx context.Context, req *domain.EngineRequest) (*domain.EngineResponse, error) {
	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}

	var te *domain.TransportError
	if !errors.As(err, &te) {
		return nil, err
	}

	switch {
	case te.Kind.Retryable():
		c.logger.Debug("engine unreachable, starting service", "error", err)
		startErr := c.svc.Start(ctx)
		if startErr == nil {
			resp, err = c.send(ctx, req)
			if err == nil {
				return resp, nil
			}
			if !errors.As(err, &te) {
				return nil, err
			}
		} else {
			c.logger.Warn("engine service could not be started", "error", startErr)
		}
		return c.fallback(ctx, req, err)

	case te.Kind == domain.TransportReset:
		c.logger.Debug("engine connection reset, restarting service", "error", err)
		if startErr := c.svc.Start(ctx); startErr != nil {
			c.logger.Warn("engine service did not come back after reset", "error", startErr)
			return &domain.EngineResponse{Status: domain.ResponseCancelledByDuplicate}, nil
		}
		return c.send(ctx, req)

	default:
		return nil, te
	}
}

// fallback runs the request through the one-shot command line when one is
// configured, otherwise it surfaces cause.
func (c *Client) fallback(ctx context.Context, req *domain.EngineRequest, cause error) (*domain.EngineResponse, error) {
	if c.oneShot == nil || !c.oneShot.Configured() {
		return nil, cause
	}
	c.logger.Info("falling back to one-shot engine invocation")
	return c.oneShot.Run(ctx, req)
}

// send performs one request round trip.
func (c *Client) send(ctx context.Context, req *domain.EngineRequest) (*domain.EngineResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.svc.cfg.RequestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(rctx, http.MethodPost, c.svc.baseURL+"/request", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.svc.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify("request", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify("request", err)
	}
	c.svc.markRunning()

	resp, derr := decodeResponse(data)
	if derr != nil {
		if httpResp.StatusCode >= 300 {
			derr.Message = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, derr.Message)
		}
		return nil, derr
	}
	c.logger.Debug("engine response",
		"status", resp.Status.String(),
		"files", len(resp.Files),
		"request_key", req.RequestKey)
	return resp, nil
}
