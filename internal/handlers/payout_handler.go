package handlers

import (
	"log/slog"
	"net/http"

	"coordination-service/internal/models"
	"coordination-service/internal/services"
	"coordination-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// PayoutHandler exposes the automatic payout orchestrator and the
// reconciliation trail over HTTP. The weather endpoint mirrors the queue
// consumer so operators can replay an observation by hand.
type PayoutHandler struct {
	payoutService *services.AutomaticPayoutService
	reconService  *services.ReconciliationService
}

func NewPayoutHandler(payoutService *services.AutomaticPayoutService, reconService *services.ReconciliationService) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
		reconService:  reconService,
	}
}

func (h *PayoutHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/weather/consensus", h.ProcessConsensus)

	payouts := router.Group("/payouts")
	payouts.Get("/unreconciled", h.ListUnreconciled)
	payouts.Post("/unreconciled/:id/resolve", h.ResolveUnreconciled)
}

// ProcessConsensus runs one payout orchestration batch for the posted
// observation and returns the aggregated outcome.
func (h *PayoutHandler) ProcessConsensus(c fiber.Ctx) error {
	var obs models.WeatherConsensus
	if err := c.Bind().Body(&obs); err != nil {
		slog.Error("Invalid weather consensus body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}
	if obs.Location == "" {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "location is required"))
	}

	outcome, err := h.payoutService.ProcessConsensus(c.Context(), obs)
	if err != nil {
		slog.Error("Payout orchestration run failed", "location", obs.Location, "error", err)
		return c.Status(http.StatusBadGateway).JSON(
			utils.CreateErrorResponse("LEDGER_FAILURE", err.Error()))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(outcome))
}

// ListUnreconciled returns payouts still awaiting manual settlement.
func (h *PayoutHandler) ListUnreconciled(c fiber.Ctx) error {
	if h.reconService == nil {
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateErrorResponse("TRAIL_DISABLED", "Reconciliation trail is not enabled"))
	}

	open, err := h.reconService.ListOpen(c.Context())
	if err != nil {
		slog.Error("Failed to list unreconciled payouts", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("INTERNAL_ERROR", err.Error()))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(open))
}

// ResolveUnreconciled marks one failed payout as manually settled.
func (h *PayoutHandler) ResolveUnreconciled(c fiber.Ctx) error {
	if h.reconService == nil {
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateErrorResponse("TRAIL_DISABLED", "Reconciliation trail is not enabled"))
	}

	id := c.Params("id")
	if err := h.reconService.Resolve(c.Context(), id); err != nil {
		slog.Error("Failed to resolve unreconciled payout", "id", id, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("INTERNAL_ERROR", err.Error()))
	}

	slog.Info("Unreconciled payout resolved", "id", id)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(fiber.Map{"id": id, "resolved": true}))
}
