package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/casetrack/internal/middleware"
	"github.com/opsdesk/casetrack/internal/models"
	"github.com/opsdesk/casetrack/internal/storage"
	"github.com/opsdesk/casetrack/internal/validation"
)

type CaseHandler struct {
	storage storage.Storage
}

func NewCaseHandler(storage storage.Storage) *CaseHandler {
	return &CaseHandler{
		storage: storage,
	}
}

// List returns every case for admins and only the caller's assigned cases
// for everyone else, newest first.
func (h *CaseHandler) List(c *fiber.Ctx) error {
	claims, ok := middleware.CallerClaims(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found in context",
		})
	}

	scope := models.CaseScope{}
	if claims.Role != models.RoleAdmin {
		scope.AssigneeID = &claims.UserID
	}

	cases, err := h.storage.ListCases(c.Context(), scope)
	if err != nil {
		log.Printf("list cases: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch cases",
		})
	}

	return c.JSON(cases)
}

type CreateCaseRequest struct {
	LeadCkt      string              `json:"leadCkt" validate:"required"`
	IPAddress    string              `json:"ipAddress"`
	Connectivity models.Connectivity `json:"connectivity" validate:"required,oneof=Stable Unstable Unknown"`
	AssignedDate time.Time           `json:"assignedDate" validate:"required"`
	DueDate      time.Time           `json:"dueDate" validate:"required,gtefield=AssignedDate"`
	CaseRemarks  string              `json:"caseRemarks"`
	Status       models.CaseStatus   `json:"status" validate:"required,oneof=Pending Overdue Completed OnHold"`
	TimeSpent    int                 `json:"timeSpent" validate:"min=0"`
	Device       string              `json:"device"`
	AssignedTo   *uint               `json:"assignedTo"`
}

func (h *CaseHandler) Create(c *fiber.Ctx) error {
	claims, ok := middleware.CallerClaims(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found in context",
		})
	}

	var req CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := h.storage.GetLeadByCkt(c.Context(), req.LeadCkt); err != nil {
		if errors.Is(err, storage.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		log.Printf("create case lead lookup: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create case",
		})
	}

	if req.AssignedTo != nil {
		if _, err := h.storage.GetUserByID(c.Context(), *req.AssignedTo); err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Unknown assignee",
				})
			}
			log.Printf("create case assignee lookup: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create case",
			})
		}
	}

	newCase := &models.Case{
		LeadCkt:      req.LeadCkt,
		IPAddress:    req.IPAddress,
		Connectivity: req.Connectivity,
		AssignedDate: req.AssignedDate,
		DueDate:      req.DueDate,
		CaseRemarks:  req.CaseRemarks,
		Status:       req.Status,
		TimeSpent:    req.TimeSpent,
		Device:       req.Device,
		CreatedBy:    claims.UserID,
		AssignedTo:   req.AssignedTo,
	}

	if err := h.storage.CreateCase(c.Context(), newCase); err != nil {
		if errors.Is(err, storage.ErrOpenCaseExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "An open case already exists for this lead",
			})
		}
		log.Printf("create case: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create case",
		})
	}

	created, err := h.storage.GetCase(c.Context(), newCase.ID)
	if err != nil {
		log.Printf("reload created case %d: %v", newCase.ID, err)
		return c.Status(fiber.StatusCreated).JSON(newCase)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

type UpdateCaseRequest struct {
	IPAddress    *string              `json:"ipAddress"`
	Connectivity *models.Connectivity `json:"connectivity" validate:"omitempty,oneof=Stable Unstable Unknown"`
	AssignedDate *time.Time           `json:"assignedDate"`
	DueDate      *time.Time           `json:"dueDate"`
	CaseRemarks  *string              `json:"caseRemarks"`
	Status       *models.CaseStatus   `json:"status" validate:"omitempty,oneof=Pending Overdue Completed OnHold"`
	TimeSpent    *int                 `json:"timeSpent" validate:"omitempty,min=0"`
	Device       *string              `json:"device"`
	AssignedTo   *uint                `json:"assignedTo"`
}

// Update applies a partial update. Only the fields present in the body
// change; the updatable set is fixed here, never derived from request keys.
func (h *CaseHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	var req UpdateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	existing, err := h.storage.GetCase(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		log.Printf("get case %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update case",
		})
	}

	// Date ordering must hold against the effective values, whichever side
	// the request changes.
	assigned := existing.AssignedDate
	due := existing.DueDate
	if req.AssignedDate != nil {
		assigned = *req.AssignedDate
	}
	if req.DueDate != nil {
		due = *req.DueDate
	}
	if due.Before(assigned) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "dueDate must not be before assignedDate",
		})
	}

	if req.AssignedTo != nil && *req.AssignedTo != 0 {
		if _, err := h.storage.GetUserByID(c.Context(), *req.AssignedTo); err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Unknown assignee",
				})
			}
			log.Printf("update case assignee lookup: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update case",
			})
		}
	}

	updated, err := h.storage.UpdateCase(c.Context(), uint(id), models.CaseUpdate{
		IPAddress:    req.IPAddress,
		Connectivity: req.Connectivity,
		AssignedDate: req.AssignedDate,
		DueDate:      req.DueDate,
		CaseRemarks:  req.CaseRemarks,
		Status:       req.Status,
		TimeSpent:    req.TimeSpent,
		Device:       req.Device,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		if errors.Is(err, storage.ErrOpenCaseExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "An open case already exists for this lead",
			})
		}
		log.Printf("update case %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update case",
		})
	}

	return c.JSON(updated)
}

// Delete removes a case outright. Deleting an id that is already gone is a
// 404, so a repeated delete is safe to surface to the caller.
func (h *CaseHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	if err := h.storage.DeleteCase(c.Context(), uint(id)); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		log.Printf("delete case %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete case",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
