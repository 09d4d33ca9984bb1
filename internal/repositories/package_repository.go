package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"ovoz/internal/models/db_models"
)

type IPackageRepository interface {
	GetPackageByCode(ctx context.Context, code string) (*db_models.MinutePackage, error)
	GetAllPackages(ctx context.Context) ([]db_models.MinutePackage, error)
}

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) IPackageRepository {
	return &PackageRepository{db: db}
}

func (p PackageRepository) GetPackageByCode(ctx context.Context, code string) (*db_models.MinutePackage, error) {

	var pkg db_models.MinutePackage
	err := p.db.WithContext(ctx).
		Where("code = ? AND is_active = TRUE", code).
		First(&pkg).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &pkg, nil
}

func (p PackageRepository) GetAllPackages(ctx context.Context) ([]db_models.MinutePackage, error) {

	var pkgs []db_models.MinutePackage
	err := p.db.WithContext(ctx).Where("is_active = TRUE").Find(&pkgs).Error

	if err != nil {
		return nil, err
	}

	return pkgs, nil
}
