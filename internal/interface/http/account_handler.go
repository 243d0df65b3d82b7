package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/application"
	"github.com/oksasatya/account-service/internal/interface/middleware"
	"github.com/oksasatya/account-service/pkg/response"
	"github.com/oksasatya/account-service/pkg/validation"
)

type AccountHandler struct {
	Commands *application.AccountCommands
	Queries  *application.AccountQueries
	Exporter *application.HistoryExporter
	Logger   *logrus.Logger
}

func NewAccountHandler(commands *application.AccountCommands, queries *application.AccountQueries, exporter *application.HistoryExporter, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Commands: commands, Queries: queries, Exporter: exporter, Logger: logger}
}

type createAccountRequest struct {
	Name     string   `json:"name" binding:"required,max=200"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,pwd"`
	Roles    []string `json:"roles" binding:"omitempty,unique,dive,role"`
	Sources  []string `json:"sources" binding:"omitempty,dive,required"`
}

// updateAccountRequest uses pointers so an omitted field stays unchanged.
type updateAccountRequest struct {
	Name     *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Email    *string  `json:"email" binding:"omitempty,email"`
	Password *string  `json:"password" binding:"omitempty,pwd"`
	Roles    []string `json:"roles" binding:"omitempty,unique,dive,role"`
	Sources  []string `json:"sources" binding:"omitempty,dive,required"`
}

type rolesRequest struct {
	Roles []string `json:"roles" binding:"required,min=1,unique,dive,role"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required,pwd"`
}

func (h *AccountHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	acc, err := h.Commands.Create(c.Request.Context(), middleware.RequesterFrom(c), application.CreateAccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
		Sources:  req.Sources,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, acc, "account created", nil)
}

func (h *AccountHandler) Get(c *gin.Context) {
	acc, err := h.Queries.FindByID(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "account", nil)
}

// Me returns the authenticated caller's own account.
func (h *AccountHandler) Me(c *gin.Context) {
	req := middleware.RequesterFrom(c)
	if req == nil {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	acc, err := h.Queries.FindByID(c.Request.Context(), req, req.ID)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "account", nil)
}

// List serves GET /api/accounts. With ?email= it looks up a single account.
func (h *AccountHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	req := middleware.RequesterFrom(c)
	if email := c.Query("email"); email != "" {
		acc, err := h.Queries.FindByEmail(ctx, req, email)
		if err != nil {
			writeError(c, h.Logger, err)
			return
		}
		response.Success(c, http.StatusOK, acc, "account", nil)
		return
	}

	f, details := parseFilter(c)
	if details != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid query", details)
		return
	}
	page, err := h.Queries.FindAll(ctx, req, f)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, page.Items, "accounts", gin.H{
		"total":    page.Total,
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}

func parseFilter(c *gin.Context) (application.AccountFilter, map[string]string) {
	f := application.AccountFilter{
		IDs:     splitQuery(c.QueryArray("ids")),
		Roles:   splitQuery(c.QueryArray("roles")),
		Sources: splitQuery(c.QueryArray("sources")),
		Name:    strings.TrimSpace(c.Query("name")),
	}
	details := map[string]string{}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			details["page"] = "must be a positive integer"
		}
		f.Page = n
	}
	if v := c.Query("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			details["per_page"] = "must be between 1 and 100"
		}
		f.PerPage = n
	}

	order := application.SortDesc
	switch strings.ToLower(c.DefaultQuery("order", "desc")) {
	case "asc":
		order = application.SortAsc
	case "desc":
	default:
		details["order"] = "must be one of: asc, desc"
	}
	switch c.DefaultQuery("sort", "created_at") {
	case "name":
		f.Sort.Name = order
	case "email":
		f.Sort.Email = order
	case "created_at":
		f.Sort.CreatedAt = order
	default:
		details["sort"] = "must be one of: name, email, created_at"
	}
	if len(details) > 0 {
		return f, details
	}
	return f, nil
}

// splitQuery accepts both repeated parameters and comma-separated values.
func splitQuery(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (h *AccountHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid query", map[string]string{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	items, err := h.Queries.Search(c.Request.Context(), middleware.RequesterFrom(c), q, size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, items, "search results", gin.H{"count": len(items)})
}

func (h *AccountHandler) Update(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	acc, err := h.Commands.Update(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"), application.UpdateAccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
		Sources:  req.Sources,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "account updated", nil)
}

func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.Commands.Delete(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "account deleted", nil)
}

func (h *AccountHandler) Approve(c *gin.Context) {
	acc, err := h.Commands.Approve(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "account approved", nil)
}

func (h *AccountHandler) Block(c *gin.Context) {
	acc, err := h.Commands.Block(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "account blocked", nil)
}

func (h *AccountHandler) GrantRoles(c *gin.Context) {
	var req rolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	acc, err := h.Commands.GrantRoles(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"), req.Roles)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, acc, "roles granted", nil)
}

func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Commands.ChangePassword(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"), req.Password); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password changed", nil)
}

func (h *AccountHandler) History(c *gin.Context) {
	recs, err := h.Queries.History(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	entries, err := application.ToHistoryEntries(recs)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, entries, "account history", gin.H{"count": len(entries)})
}

func (h *AccountHandler) ExportHistory(c *gin.Context) {
	if h.Exporter == nil {
		response.Error[any](c, http.StatusServiceUnavailable, "history export not configured", nil)
		return
	}
	url, err := h.Exporter.Export(c.Request.Context(), middleware.RequesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"url": url}, "history exported", nil)
}
