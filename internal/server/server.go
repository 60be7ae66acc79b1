package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/config"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/handler"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/middleware"
)

type Server struct {
	echo            *echo.Echo
	paymentHandler  *handler.PaymentHandler
	checkoutHandler *handler.CheckoutHandler
}

func NewServer(
	cfg *config.Config,
	paymentHandler *handler.PaymentHandler,
	checkoutHandler *handler.CheckoutHandler,
	log *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(requestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:            e,
		paymentHandler:  paymentHandler,
		checkoutHandler: checkoutHandler,
	}

	s.setupRoutes(cfg)
	return s
}

func (s *Server) setupRoutes(cfg *config.Config) {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/sessions", s.checkoutHandler.CreateSession)
	api.GET("/sessions/:sessionID", s.checkoutHandler.GetSession)
	api.GET("/giftcards", s.checkoutHandler.ListGiftCards)

	// Payment recording blocks on chain confirmation for up to two minutes,
	// so it sits behind both auth and the admission gate.
	payments := api.Group("/payments",
		middleware.Auth(cfg.Auth.JWTSecret),
		requestGate(&cfg.Rate),
	)
	payments.POST("", s.paymentHandler.RecordPayment)
	payments.GET("/:paymentID", s.paymentHandler.GetPayment)
}

// requestGate is per-client admission control. Rejected requests get a 429
// with a Retry-After hint instead of queueing behind long verifications.
func requestGate(cfg *config.RateLimit) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.PerSecond),
			Burst:     cfg.Burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "too many requests"})
		},
	})
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
