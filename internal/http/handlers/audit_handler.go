// Audit HTTP handlers.
//
// The audit chain is read-only over HTTP: entries are appended exclusively by
// the service layer inside business transactions. These endpoints exist for
// compliance review (paged listing) and integrity checks (chain
// verification).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/services"
)

// ListAuditResponse contains a page of audit entries and pagination metadata.
type ListAuditResponse struct {
	Entries    []domain.AuditEntry `json:"entries"`
	Pagination Pagination          `json:"pagination"`
}

// ListAudit returns a page of the tenant's audit chain, newest first.
//
// GET /audit
func (h *Handlers) ListAudit(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.auditSvc.ListPage(c.Request.Context(), tenantID(c), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListAuditResponse{
		Entries:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// VerifyAudit recomputes the tenant's hash chain and reports the first
// broken link, if any.
//
// GET /audit/verify
func (h *Handlers) VerifyAudit(c *gin.Context) {
	res, err := h.auditSvc.VerifyChain(c.Request.Context(), tenantID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, res)
}

// ensure the concrete service satisfies the handler contract.
var _ AuditService = (*services.AuditService)(nil)
