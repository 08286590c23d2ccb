package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// DashboardPlaceholder is served at GET /dashboard.
const DashboardPlaceholder = "This is your web dashboard."

// DashboardHandler exposes the read-only dashboard.
type DashboardHandler struct {
	tickets *service.TicketService
	auth    *service.AuthService
	metrics *observability.Metrics
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(tickets *service.TicketService, authService *service.AuthService, metrics *observability.Metrics) *DashboardHandler {
	return &DashboardHandler{tickets: tickets, auth: authService, metrics: metrics}
}

// Placeholder handles GET /dashboard.
func (h *DashboardHandler) Placeholder(c *fiber.Ctx) error {
	return c.SendString(DashboardPlaceholder)
}

// Login handles POST /dashboard/login.
func (h *DashboardHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password required", nil)
	}

	token, exp, err := h.auth.Login(c.UserContext(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: exp}})
}

// ListTickets handles GET /dashboard/api/tickets?status=&priority=&assignee=.
func (h *DashboardHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.List(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]dto.TicketResponse, 0, len(entries))
	for _, entry := range entries {
		if query.Matches(entry.Ticket) {
			out = append(out, dto.NewTicketResponse(entry.ID, entry.Ticket))
		}
	}
	return c.JSON(fiber.Map{"data": out, "count": len(out)})
}

// GetTicket handles GET /dashboard/api/tickets/:id.
func (h *DashboardHandler) GetTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	ticket, err := h.tickets.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(id, ticket)})
}

// Stats handles GET /dashboard/api/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Tickets:  stats,
		Counters: h.metrics.Snapshot(),
	}})
}

func parseTicketListQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	var q dto.TicketListQuery
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.TicketStatus(strings.ToLower(raw))
		if status != domain.TicketStatusOpen && status != domain.TicketStatusClosed {
			return q, apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		q.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return q, err
		}
		q.Priority = &priority
	}
	if raw := strings.TrimSpace(c.Query("assignee")); raw != "" {
		q.Assignee = &raw
	}
	return q, nil
}
