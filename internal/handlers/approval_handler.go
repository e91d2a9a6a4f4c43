package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"coordination-service/internal/apperrors"
	"coordination-service/internal/middleware"
	"coordination-service/internal/models"
	"coordination-service/internal/services"
	"coordination-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// ApprovalHandler exposes the approval quorum workflow over HTTP.
type ApprovalHandler struct {
	approvalService *services.ApprovalService
}

func NewApprovalHandler(approvalService *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

func (h *ApprovalHandler) RegisterRoutes(router fiber.Router) {
	approvals := router.Group("/approvals")
	approvals.Post("/", h.CreateApproval)
	approvals.Get("/", h.ListApprovals)
	approvals.Get("/status/:status", h.ListApprovalsByStatus)
	approvals.Get("/:id", h.GetApproval)
	approvals.Get("/:id/history", h.GetApprovalHistory)
	approvals.Post("/:id/approve", h.ApproveRequest)
	approvals.Post("/:id/reject", h.RejectRequest)
	approvals.Post("/:id/execute", h.ExecuteRequest)
}

type voteRequest struct {
	Reason string `json:"reason"`
}

// CreateApproval registers a new pending approval request.
func (h *ApprovalHandler) CreateApproval(c fiber.Ctx) error {
	org := middleware.Org(c)

	var input services.CreateApprovalInput
	if err := c.Bind().Body(&input); err != nil {
		slog.Error("Invalid create approval request body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	request, err := h.approvalService.Create(c.Context(), org, input)
	if err != nil {
		slog.Error("Failed to create approval request", "request_id", input.RequestID, "org", org, "error", err)
		return respondApprovalError(c, err)
	}

	slog.Info("Approval request created", "request_id", request.RequestID, "org", org, "type", request.RequestType)
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(request))
}

// ApproveRequest records the calling organization's approval vote.
func (h *ApprovalHandler) ApproveRequest(c fiber.Ctx) error {
	org := middleware.Org(c)
	requestID := c.Params("id")

	var body voteRequest
	if err := c.Bind().Body(&body); err != nil {
		// Reason is optional for approvals; an empty body is fine.
		body.Reason = ""
	}

	request, err := h.approvalService.Approve(c.Context(), org, requestID, body.Reason)
	if err != nil {
		slog.Error("Failed to approve request", "request_id", requestID, "org", org, "error", err)
		return respondApprovalError(c, err)
	}

	slog.Info("Approval recorded", "request_id", requestID, "org", org, "status", request.Status)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

// RejectRequest records the calling organization's rejection vote.
func (h *ApprovalHandler) RejectRequest(c fiber.Ctx) error {
	org := middleware.Org(c)
	requestID := c.Params("id")

	var body voteRequest
	if err := c.Bind().Body(&body); err != nil {
		slog.Error("Invalid reject request body", "request_id", requestID, "error", err)
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	request, err := h.approvalService.Reject(c.Context(), org, requestID, body.Reason)
	if err != nil {
		slog.Error("Failed to reject request", "request_id", requestID, "org", org, "error", err)
		return respondApprovalError(c, err)
	}

	slog.Info("Rejection recorded", "request_id", requestID, "org", org, "status", request.Status)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

// ExecuteRequest runs the stored target operation for an approved request.
func (h *ApprovalHandler) ExecuteRequest(c fiber.Ctx) error {
	org := middleware.Org(c)
	requestID := c.Params("id")

	result, err := h.approvalService.Execute(c.Context(), org, requestID)
	if err != nil {
		slog.Error("Failed to execute request", "request_id", requestID, "org", org, "error", err)
		return respondApprovalError(c, err)
	}

	slog.Info("Approval request executed", "request_id", requestID, "org", org, "tx_ref", result.TxRef)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(result))
}

// GetApproval returns one approval request.
func (h *ApprovalHandler) GetApproval(c fiber.Ctx) error {
	org := middleware.Org(c)
	requestID := c.Params("id")

	request, err := h.approvalService.Get(c.Context(), org, requestID)
	if err != nil {
		slog.Error("Failed to fetch approval request", "request_id", requestID, "error", err)
		return respondApprovalError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

// GetApprovalHistory returns the audit trail for one approval request.
func (h *ApprovalHandler) GetApprovalHistory(c fiber.Ctx) error {
	org := middleware.Org(c)
	requestID := c.Params("id")

	history, err := h.approvalService.History(c.Context(), org, requestID)
	if err != nil {
		slog.Error("Failed to fetch approval history", "request_id", requestID, "error", err)
		return respondApprovalError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(history))
}

// ListApprovals returns every request across all statuses, newest first.
func (h *ApprovalHandler) ListApprovals(c fiber.Ctx) error {
	org := middleware.Org(c)

	requests, err := h.approvalService.ListAll(c.Context(), org)
	if err != nil {
		slog.Error("Failed to list approval requests", "org", org, "error", err)
		return respondApprovalError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(requests))
}

// ListApprovalsByStatus returns every request in one status.
func (h *ApprovalHandler) ListApprovalsByStatus(c fiber.Ctx) error {
	org := middleware.Org(c)
	status := models.ApprovalStatus(c.Params("status"))

	requests, err := h.approvalService.ListByStatus(c.Context(), org, status)
	if err != nil {
		slog.Error("Failed to list approval requests by status", "status", status, "error", err)
		return respondApprovalError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(requests))
}

// respondApprovalError maps service errors onto HTTP statuses.
func respondApprovalError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", err.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(
			utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, apperrors.ErrUnauthorized):
		return c.Status(http.StatusForbidden).JSON(
			utils.CreateErrorResponse("FORBIDDEN", err.Error()))
	case errors.Is(err, apperrors.ErrInvalidState):
		return c.Status(http.StatusConflict).JSON(
			utils.CreateErrorResponse("INVALID_STATE", err.Error()))
	case errors.Is(err, apperrors.ErrLedgerFailure):
		return c.Status(http.StatusBadGateway).JSON(
			utils.CreateErrorResponse("LEDGER_FAILURE", err.Error()))
	default:
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("INTERNAL_ERROR", err.Error()))
	}
}
