package merchant_fx

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ovoz/internal/api/controllers"
	"ovoz/internal/repositories"
	"ovoz/internal/services"
	"ovoz/pkg/paycom"
)

var Module = fx.Provide(
	provideAuthenticator,
	provideMerchantStore,
	provideMerchantService,
	provideMerchantController,
)

func provideAuthenticator() *paycom.Authenticator {
	cfg := paycom.AuthConfig{
		Key:        os.Getenv("PAYCOM_KEY"),
		AllowedIPs: paycom.DefaultAllowedIPs,
		TestMode:   os.Getenv("PAYCOM_TEST_MODE") == "true",
	}
	if ips := os.Getenv("PAYCOM_ALLOWED_IPS"); ips != "" {
		cfg.AllowedIPs = strings.Split(ips, ",")
	}
	return paycom.NewAuthenticator(cfg)
}

func provideMerchantStore(db *gorm.DB) repositories.IMerchantStore {
	return repositories.NewMerchantStore(db)
}

func provideMerchantService(store repositories.IMerchantStore, logger *zap.Logger) services.MerchantService {
	cfg := services.MerchantConfig{}
	if v := os.Getenv("PAYCOM_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TransactionTimeoutMs = ms
		}
	}
	return services.NewMerchantService(store, cfg, logger)
}

func provideMerchantController(merchantService services.MerchantService, auth *paycom.Authenticator, logger *zap.Logger) *controllers.MerchantController {
	return controllers.NewMerchantController(merchantService, auth, logger)
}
