package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/casetrack/internal/models"
	"github.com/opsdesk/casetrack/internal/storage"
)

// searchLimit caps lead search results; the picker UI never needs more.
const searchLimit = 50

type LeadHandler struct {
	storage storage.Storage
}

func NewLeadHandler(storage storage.Storage) *LeadHandler {
	return &LeadHandler{
		storage: storage,
	}
}

// Search matches the query as a case-insensitive substring of any of the
// searched lead fields. Queries shorter than two characters return an empty
// list without touching the store.
func (h *LeadHandler) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 2 {
		return c.JSON([]models.Lead{})
	}

	leads, err := h.storage.SearchLeads(c.Context(), query, searchLimit)
	if err != nil {
		log.Printf("search leads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to search leads",
		})
	}

	return c.JSON(leads)
}

func (h *LeadHandler) Get(c *fiber.Ctx) error {
	ckt := c.Params("ckt")

	lead, err := h.storage.GetLeadByCkt(c.Context(), ckt)
	if err != nil {
		if errors.Is(err, storage.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		log.Printf("get lead %s: %v", ckt, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch lead",
		})
	}

	return c.JSON(lead)
}
