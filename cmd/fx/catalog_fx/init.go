package catalog_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"ovoz/internal/api/controllers"
	"ovoz/internal/repositories"
	"ovoz/internal/services"
)

var Module = fx.Provide(
	providePlanRepo, providePackageRepo, provideCatalogService, provideCatalogController)

func providePlanRepo(db *gorm.DB) repositories.IPlanRepository {
	return repositories.NewPlanRepository(db)
}

func providePackageRepo(db *gorm.DB) repositories.IPackageRepository {
	return repositories.NewPackageRepository(db)
}

func provideCatalogService(planRepo repositories.IPlanRepository, packageRepo repositories.IPackageRepository) services.CatalogServiceInterface {
	return services.NewCatalogService(planRepo, packageRepo)
}

func provideCatalogController(catalogService services.CatalogServiceInterface) *controllers.CatalogController {
	return controllers.NewCatalogController(catalogService)
}
