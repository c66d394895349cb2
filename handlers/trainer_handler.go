package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/models"
)

func ListApprovedTrainers(c *fiber.Ctx) error {
	var trainers []models.TrainerProfile
	query := database.DB.Preload("User").Where("status = ?", "approved")

	if minRating := c.Query("min_rating"); minRating != "" {
		query = query.Where("avg_rating >= ?", minRating)
	}

	if err := query.Find(&trainers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trainers"})
	}

	return c.JSON(trainers)
}

func GetTrainerProfile(c *fiber.Ctx) error {
	trainerID := c.Params("trainerId")

	var trainer models.TrainerProfile
	if err := database.DB.Preload("User").First(&trainer, "user_id = ? AND status = ?", trainerID, "approved").Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
	}

	return c.JSON(trainer)
}

func GetMyTrainerProfile(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	var trainer models.TrainerProfile
	if err := database.DB.Preload("User").First(&trainer, "user_id = ?", trainerID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer profile not found"})
	}

	return c.JSON(trainer)
}

func UpdateMyTrainerProfile(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	type Request struct {
		Headline *string `json:"headline" validate:"omitempty,max=255"`
		Bio      *string `json:"bio"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var trainer models.TrainerProfile
	if err := database.DB.First(&trainer, "user_id = ?", trainerID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer profile not found"})
	}

	if req.Headline != nil {
		trainer.Headline = req.Headline
	}
	if req.Bio != nil {
		trainer.Bio = req.Bio
	}

	if err := database.DB.Save(&trainer).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(trainer)
}
