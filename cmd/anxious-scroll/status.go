package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"anxiousscroll/scroll"
)

// statusParams is the JSON view of the curve parameters.
type statusParams struct {
	BaseSens   float64 `json:"base_sens"`
	MaxSens    float64 `json:"max_sens"`
	RampUpRate float64 `json:"ramp_up_rate"`
	ExpLookup  bool    `json:"exp_lookup"`
}

// statusDevice names the physical and virtual ends of the session.
type statusDevice struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Virtual string `json:"virtual"`
	Grabbed bool   `json:"grabbed"`
}

// statusSource is everything /status reports. Fields are fixed for a
// session except the stats, which are read through snapshot.
type statusSource struct {
	Version   string
	Device    statusDevice
	Params    scroll.Params
	ExpLookup bool
	Stats     *sessionStats
	WS        *Server // nil disables /ws
}

type statusResponse struct {
	Version   string        `json:"version"`
	Device    statusDevice  `json:"device"`
	Params    statusParams  `json:"params"`
	WSClients int           `json:"ws_clients"`
	Stats     statsSnapshot `json:"stats"`
}

// newStatusRouter wires the status endpoints.
//
//	GET /health  liveness
//	GET /status  session identity, parameters and counters
//	GET /ws      telemetry stream (when a Server is configured)
func newStatusRouter(src statusSource) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/status", func(c *gin.Context) {
		resp := statusResponse{
			Version: src.Version,
			Device:  src.Device,
			Params: statusParams{
				BaseSens:   src.Params.BaseSens,
				MaxSens:    src.Params.MaxSens,
				RampUpRate: src.Params.RampUpRate,
				ExpLookup:  src.ExpLookup,
			},
		}
		if src.Stats != nil {
			resp.Stats = src.Stats.snapshot()
		}
		if src.WS != nil {
			resp.WSClients = src.WS.Hub().clientCount()
		}
		c.JSON(http.StatusOK, resp)
	})

	if src.WS != nil {
		r.GET("/ws", gin.WrapF(src.WS.handleStateWS))
	}

	return r
}

// runStatusServer serves handler on addr and shuts it down gracefully when
// ctx is canceled.
func runStatusServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	logger.Info("status server listening", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// Shutdown makes ListenAndServe return http.ErrServerClosed.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("status server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
