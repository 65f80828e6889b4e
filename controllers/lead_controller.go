package controller

import (
	"errors"
	"log"
	"strconv"
	"time"

	"homewright/models"
	"homewright/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Drip   *utils.DripEngine
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, drip *utils.DripEngine, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Drip:   drip,
		Logger: logger,
	}
}

type createLeadInput struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"max=30"`
	Message      string `json:"message" validate:"max=5000"`
	ProjectType  string `json:"project_type" validate:"omitempty,oneof=custom_home renovation addition"`
	Budget       string `json:"budget" validate:"max=60"`
	Neighborhood string `json:"neighborhood" validate:"max=120"`
	Source       string `json:"source" validate:"max=60"`
}

// CreateLead records a contact-form submission.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input createLeadInput
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

	lead := models.Lead{
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Message:      input.Message,
		ProjectType:  input.ProjectType,
		Budget:       input.Budget,
		Neighborhood: input.Neighborhood,
		Source:       input.Source,
		Status:       models.LeadNew,
	}
	if err := lc.DB.Create(&lead).Error; err != nil {
		lc.Logger.Printf("Error creating lead: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save inquiry",
		})
	}

	lc.Logger.Printf("New lead %d from %s (%s)", lead.ID, lead.Name, lead.Email)
	return c.Status(fiber.StatusCreated).JSON(lead)
}

type subscribeInput struct {
	Email  string `json:"email" validate:"required"`
	Name   string `json:"name" validate:"max=120"`
	Source string `json:"source" validate:"max=60"`
}

// Subscribe creates (or reactivates) a subscriber and enrolls them in
// the welcome drip sequence. Re-subscribing is harmless: enrollment is
// at-most-once per sequence.
func (lc *LeadController) Subscribe(c *fiber.Ctx) error {
	var input subscribeInput
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
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email must be a valid email",
		})
	}

	var subscriber models.Subscriber
	err := lc.DB.Where("email = ?", input.Email).First(&subscriber).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		subscriber = models.Subscriber{
			Email:            input.Email,
			Name:             input.Name,
			Source:           input.Source,
			IsActive:         true,
			UnsubscribeToken: uuid.NewString(),
		}
		if err := lc.DB.Create(&subscriber).Error; err != nil {
			lc.Logger.Printf("Error creating subscriber: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to subscribe",
			})
		}
	case err != nil:
		lc.Logger.Printf("Error looking up subscriber: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to subscribe",
		})
	default:
		if !subscriber.IsActive {
			if err := lc.DB.Model(&subscriber).Updates(map[string]interface{}{
				"is_active":       true,
				"unsubscribed_at": nil,
			}).Error; err != nil {
				lc.Logger.Printf("Error reactivating subscriber %d: %v", subscriber.ID, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to subscribe",
				})
			}
		}
	}

	_, err = lc.Drip.EnrollByName(subscriber.ID, models.WelcomeSequenceName, time.Now())
	if err != nil && !errors.Is(err, utils.ErrAlreadyEnrolled) {
		lc.Logger.Printf("Error enrolling subscriber %d: %v", subscriber.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start welcome series",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscribed",
	})
}

// Unsubscribe deactivates a subscriber by token and halts every
// sequence they are enrolled in.
func (lc *LeadController) Unsubscribe(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token is required",
		})
	}

	var subscriber models.Subscriber
	err := lc.DB.Where("unsubscribe_token = ?", token).First(&subscriber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown unsubscribe token",
		})
	}
	if err != nil {
		lc.Logger.Printf("Error looking up unsubscribe token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsubscribe",
		})
	}

	now := time.Now()
	if err := lc.DB.Model(&subscriber).Updates(map[string]interface{}{
		"is_active":       false,
		"unsubscribed_at": now,
	}).Error; err != nil {
		lc.Logger.Printf("Error deactivating subscriber %d: %v", subscriber.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsubscribe",
		})
	}

	if err := lc.Drip.HaltSubscriber(subscriber.ID, now); err != nil {
		lc.Logger.Printf("Error halting sequences for subscriber %d: %v", subscriber.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsubscribe",
		})
	}

	return c.JSON(fiber.Map{
		"message": "You have been unsubscribed",
	})
}

// ListLeads returns leads for the admin dashboard, newest first.
func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := lc.DB.Model(&models.Lead{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	return c.JSON(fiber.Map{
		"leads": leads,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ListSubscribers returns subscribers with their enrollments.
func (lc *LeadController) ListSubscribers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	var total int64
	if err := lc.DB.Model(&models.Subscriber{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subscribers",
		})
	}

	var subscribers []models.Subscriber
	if err := lc.DB.Preload("Enrollments").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&subscribers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subscribers",
		})
	}

	return c.JSON(fiber.Map{
		"subscribers": subscribers,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}
