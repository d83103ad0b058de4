package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LukasWeber/CardForge/app/repository"
)

// HandleListProducts returns the active catalog. Inventory levels are not
// exposed; a slug listed here may still run out before the webhook arrives.
func HandleListProducts(c *fiber.Ctx) error {
	repos := repository.GetGlobalFactory().GetRepositories()
	products, err := repos.Product.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "product_list_failed"})
	}

	catalog := make([]fiber.Map, 0, len(products))
	for _, p := range products {
		catalog = append(catalog, fiber.Map{
			"slug":        p.Slug,
			"name":        p.Name,
			"description": p.Description,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"products": catalog})
}
