// Package edge is the HTTP surface C3's correlator is offered behind
// (spec §6): three GET routes translating path parameters into a
// correlator.Query call. Grounded on the echo usage declared across the
// teacher's service templates, with the logging/error-mapping texture of
// pkg/api/middleware.
package edge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	apperrors "github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
)

// replyPrefix is preserved byte-for-byte for wire compatibility with
// existing front-ends (spec §6).
const replyPrefix = "По заданным параметрам успешно получен ответ : "

// Querier is the one operation edge depends on.
type Querier interface {
	Query(ctx context.Context, kind domain.Kind, argument string) (domain.Reply, error)
}

// Server hosts the three currency routes over a Querier.
type Server struct {
	echo           *echo.Echo
	querier        Querier
	requestTimeout time.Duration
}

// New builds a Server. requestTimeout bounds every request's call into
// Query (spec's edge.requestTimeoutSec), distinct from the correlator's
// own internal 10s pending-slot deadline.
func New(querier Querier, requestTimeout time.Duration) *Server {
	s := &Server{echo: echo.New(), querier: querier, requestTimeout: requestTimeout}
	s.echo.HideBanner = true
	s.echo.GET("/currencies/all", s.handleAll)
	s.echo.GET("/currencies/single/:code", s.handleSingle)
	s.echo.GET("/currencies/filter/:list", s.handleFilter)
	return s
}

// Start serves HTTP on addr, blocking until ctx is cancelled or the server
// errors.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleAll(c echo.Context) error {
	return s.respond(c, domain.KindAll, "")
}

func (s *Server) handleSingle(c echo.Context) error {
	return s.respond(c, domain.KindSingle, c.Param("code"))
}

func (s *Server) handleFilter(c echo.Context) error {
	return s.respond(c, domain.KindFilter, c.Param("list"))
}

func (s *Server) respond(c echo.Context, kind domain.Kind, argument string) error {
	if err := domain.ValidateArgument(kind, argument); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.requestTimeout)
	defer cancel()

	reply, err := s.querier.Query(ctx, kind, argument)
	if err != nil {
		return s.respondError(c, err)
	}

	body, err := json.Marshal(reply)
	if err != nil {
		logger.L().ErrorContext(ctx, "edge: failed to marshal reply", "error", err)
		return c.String(http.StatusInternalServerError, "internal error")
	}
	return c.String(http.StatusOK, replyPrefix+string(body))
}

// respondError maps a correlator error onto spec §7's HTTP status table via
// AppError.HTTPStatus(), the single source of truth for that mapping.
func (s *Server) respondError(c echo.Context, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.L().ErrorContext(c.Request().Context(), "edge: query failed", "error", err)
		return c.String(http.StatusInternalServerError, "internal error")
	}
	if appErr.Code == apperrors.CodeInternal {
		logger.L().ErrorContext(c.Request().Context(), "edge: query failed", "error", err)
	}
	return c.String(appErr.HTTPStatus(), err.Error())
}
