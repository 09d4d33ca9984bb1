package services

import (
	"context"

	"ovoz/internal/models/response_models"
	"ovoz/internal/repositories"
	"ovoz/pkg/utils"
)

type CatalogServiceInterface interface {
	ListPlans(ctx context.Context) ([]response_models.PlanResponse, error)
	ListPackages(ctx context.Context) ([]response_models.PackageResponse, error)
}

type CatalogService struct {
	planRepo    repositories.IPlanRepository
	packageRepo repositories.IPackageRepository
}

func NewCatalogService(planRepo repositories.IPlanRepository, packageRepo repositories.IPackageRepository) CatalogServiceInterface {
	return &CatalogService{
		planRepo:    planRepo,
		packageRepo: packageRepo,
	}
}

func (s *CatalogService) ListPlans(ctx context.Context) ([]response_models.PlanResponse, error) {

	plans, err := s.planRepo.GetAllPlans(ctx)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	out := make([]response_models.PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, response_models.PlanResponse{
			Code:             p.Code,
			Name:             p.Name,
			Period:           string(p.Period),
			PriceMinor:       p.PriceMinor,
			Currency:         p.Currency,
			MinutesPerPeriod: p.MinutesPerPeriod,
		})
	}
	return out, nil
}

func (s *CatalogService) ListPackages(ctx context.Context) ([]response_models.PackageResponse, error) {

	pkgs, err := s.packageRepo.GetAllPackages(ctx)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	out := make([]response_models.PackageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, response_models.PackageResponse{
			Code:       p.Code,
			Name:       p.Name,
			Minutes:    p.Minutes,
			PriceMinor: p.PriceMinor,
			Currency:   p.Currency,
		})
	}
	return out, nil
}
