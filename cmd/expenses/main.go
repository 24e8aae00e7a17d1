package main

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/middleware"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/router/handler"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/service"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/auth"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/auth/wechat"
	logs "github.com/LuJie0403/openclaw-expenses/internal/infra/log"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/persistence/mysql"
	"github.com/LuJie0403/openclaw-expenses/internal/infra/qrcode"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase/impl"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		mysql.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			mysql.NewUserRepository,
			mysql.NewLoginSessionRepository,
			mysql.NewIdentityBindingRepository,
			mysql.NewExpenseRepository,
			mysql.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			service.NewSystemClock,
			auth.NewJWTService,
			newBcryptHasher,
			newStateSigner,
			newWechatService,
			newQRCodeService,
		),
	)
}

// newBcryptHasher creates a password hasher with the configured cost.
func newBcryptHasher(cfg *config.Config) service.PasswordHasher {
	return auth.NewBcryptHasher(cfg.Auth.BcryptCost)
}

// newStateSigner creates the HMAC signer used for QR login state tokens.
// When the WeChat feature is off the signer is still wired so the object
// graph stays uniform; the routes that reach it are never mounted.
func newStateSigner(cfg *config.Config) (service.StateSigner, error) {
	if cfg.Wechat == nil || !cfg.Wechat.Enabled {
		return auth.NewHMACStateSigner(cfg.Auth.SecretKey)
	}

	return auth.NewHMACStateSigner(cfg.Wechat.StateSignSecret)
}

// newWechatService creates the WeChat open-platform OAuth client.
func newWechatService(cfg *config.Config, logger *slog.Logger) service.WechatAuthService {
	wechatCfg := cfg.Wechat
	if wechatCfg == nil {
		wechatCfg = &config.WechatConfig{}
	}

	return wechat.NewClient(wechatCfg, logger)
}

// newQRCodeService creates a QR code service with dependency injection
func newQRCodeService(cfg *config.Config) service.QRCodeService {
	if cfg.QRCode == nil {
		// Use default values if not configured
		return qrcode.NewQRCodeService(256, "M")
	}

	return qrcode.NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewQRLoginService,
			impl.NewReportService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewErrorMiddleware,
			middleware.NewRequestIDMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewQRLoginHandler,
			handler.NewReportHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
