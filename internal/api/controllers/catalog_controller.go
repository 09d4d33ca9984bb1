package controllers

import (
	"github.com/gin-gonic/gin"

	"ovoz/internal/services"
	"ovoz/pkg/utils"
)

type CatalogController struct {
	catalogService services.CatalogServiceInterface
}

func NewCatalogController(catalogService services.CatalogServiceInterface) *CatalogController {
	return &CatalogController{
		catalogService: catalogService,
	}
}

// ListPlans godoc
// @Summary List active subscription plans
// @Tags Catalog
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /catalog/plans [get]
func (ct *CatalogController) ListPlans(c *gin.Context) {
	plans, err := ct.catalogService.ListPlans(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, plans, "Plans fetched successfully")
}

// ListPackages godoc
// @Summary List active minute packages
// @Tags Catalog
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /catalog/packages [get]
func (ct *CatalogController) ListPackages(c *gin.Context) {
	pkgs, err := ct.catalogService.ListPackages(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, pkgs, "Packages fetched successfully")
}
