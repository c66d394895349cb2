package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/models"
)

// GetMyStatements lists the trainer's monthly earnings statements, newest
// period first.
func GetMyStatements(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	var statements []models.Statement
	if err := database.DB.
		Where("trainer_id = ?", trainerID).
		Order("period_start desc").
		Find(&statements).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch statements"})
	}

	return c.JSON(statements)
}
