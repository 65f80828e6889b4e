package controller

import (
	"log"

	"homewright/config"
	"homewright/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type AuthController struct {
	Logger *log.Logger
}

func NewAuthController(logger *log.Logger) *AuthController {
	return &AuthController{Logger: logger}
}

// Login checks the admin password against the configured bcrypt hash
// and issues a JWT. Site identity beyond this single admin is handled
// by an external auth service.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input struct {
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	hash := config.AppConfig.AdminPasswordHash
	if hash == "" {
		ac.Logger.Println("Login rejected: no admin password hash configured")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin login is not configured",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := utils.GenerateAdminToken()
	if err != nil {
		ac.Logger.Printf("Failed to generate admin token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
	})
}
