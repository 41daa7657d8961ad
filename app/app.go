package app

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/server"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownTimeout     = 30 * time.Second
	testShutdownTimeout = 2 * time.Second
)

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	db     *gorm.DB
	server *server.Server
}

func (a *App) Start() error {
	return a.fx.Start(context.Background())
}

// Run starts the app and blocks until SIGINT, SIGTERM or an fx shutdown
// request, then stops it gracefully.
func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sig := <-a.fx.Done()
	a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))

	a.stop(shutdownTimeout)
}

func (a *App) Stop() {
	a.stop(shutdownTimeout)
}

func (a *App) StopTest() {
	a.stop(testShutdownTimeout)
}

func (a *App) stop(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
	}
}

func (a *App) Server() *echo.Echo {
	if a.server == nil {
		return nil
	}
	return a.server.Echo()
}

func (a *App) HTTPServer() *server.Server {
	return a.server
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}
