package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ojmachado/leadflow/pkg/funnel"
	"github.com/ojmachado/leadflow/pkg/leads"
	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

type APIHandlers struct {
	persistence persistence.Persistence
	engine      *funnel.Engine
	leadService *leads.Service
	validator   *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	engine *funnel.Engine,
	leadService *leads.Service,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		engine:      engine,
		leadService: leadService,
		validator:   validator,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/funnels", h.GetFunnels)
	app.Get("/funnels/:id", h.GetFunnel)
	app.Post("/funnels", h.SaveFunnel)
	app.Delete("/funnels/:id", h.DeleteFunnel)
	app.Post("/funnels/seed", h.SeedDefaultFunnel)

	app.Get("/executions", h.GetExecutions)
	app.Post("/executions/process", h.ProcessExecutions)

	app.Get("/leads", h.GetLeads)
	app.Post("/leads", h.Subscribe)
	app.Post("/leads/:id/tags", h.AddTag)
	app.Patch("/leads/:id", h.UpdateLead)
	app.Patch("/leads/:id/stage", h.UpdateStage)
	app.Delete("/leads/:id/subscription", h.Unsubscribe)

	app.Post("/triggers", h.Trigger)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFunnels(c fiber.Ctx) error {
	funnels, err := h.persistence.Funnels(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(funnels)
}

func (h *APIHandlers) GetFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	found, err := h.persistence.FunnelByID(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) SaveFunnel(c fiber.Ctx) error {
	var req SaveFunnelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created := req.ID == ""
	if created {
		req.ID = uuid.New().String()
	}

	toSave := &models.Funnel{
		ID:          req.ID,
		Name:        req.Name,
		Trigger:     req.Trigger,
		IsActive:    req.IsActive,
		Nodes:       req.Nodes,
		StartNodeID: req.StartNodeID,
	}

	if err := toSave.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.persistence.SaveFunnel(c.Context(), toSave)
	if err != nil {
		return internalError(c, err)
	}

	if created {
		return c.Status(fiber.StatusCreated).JSON(toSave)
	}

	return c.JSON(toSave)
}

func (h *APIHandlers) DeleteFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	err := h.persistence.DeleteFunnel(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SeedDefaultFunnel(c fiber.Ctx) error {
	seeded, err := funnel.SeedPostPublishedFunnel(c.Context(), h.persistence)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(seeded)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	executions, err := h.persistence.Executions(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(executions)
}

// ProcessExecutions runs one scheduler pass on demand. The scheduler binary
// also runs passes on a cron; this endpoint exists for manual nudges and
// tests.
func (h *APIHandlers) ProcessExecutions(c fiber.Ctx) error {
	err := h.engine.ProcessExecutions(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetLeads(c fiber.Ctx) error {
	allLeads, err := h.persistence.Leads(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(allLeads)
}

func (h *APIHandlers) Subscribe(c fiber.Ctx) error {
	var req SubscribeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lead, err := h.leadService.Subscribe(c.Context(), req.Email, req.Source, req.Name, req.Phone)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

func (h *APIHandlers) AddTag(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	var req AddTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.leadService.AddTag(c.Context(), id, req.Tag)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateLead(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	var req UpdateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	lead, err := h.leadService.UpdateLead(c.Context(), id, leads.LeadUpdate{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(lead)
}

func (h *APIHandlers) UpdateStage(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	var req UpdateStageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.leadService.UpdateStage(c.Context(), id, req.Stage)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Unsubscribe(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lead ID is required")
	}

	err := h.leadService.Unsubscribe(c.Context(), id)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Trigger(c fiber.Ctx) error {
	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.LeadID == "" {
		err := h.engine.TriggerGlobalFunnel(c.Context(), req.Trigger, req.Context)
		if err != nil {
			return internalError(c, err)
		}

		return c.SendStatus(fiber.StatusAccepted)
	}

	lead, err := h.persistence.LeadByID(c.Context(), req.LeadID)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	err = h.engine.TriggerFunnel(c.Context(), req.Trigger, lead, req.Context)
	if err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
