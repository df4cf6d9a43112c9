package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/records"
)

// Field templates

type templateReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) ListFieldTemplates(c *gin.Context) {
	ts, err := h.Records.ListTemplates(c.Request.Context())
	if err != nil {
		h.fail(c, "list_templates", err)
		return
	}
	common.OK(c, gin.H{"templates": ts})
}

func (h *Handler) CreateFieldTemplate(c *gin.Context) {
	var req templateReq
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "create_template", err)
		return
	}
	t, err := h.Records.CreateTemplate(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, "create_template", err)
		return
	}
	common.OK(c, gin.H{"template": t})
}

func (h *Handler) RenameFieldTemplate(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "rename_template", err)
		return
	}
	var req templateReq
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "rename_template", err)
		return
	}
	t, err := h.Records.RenameTemplate(c.Request.Context(), id, req.Name)
	if err != nil {
		h.fail(c, "rename_template", err)
		return
	}
	common.OK(c, gin.H{"template": t})
}

func (h *Handler) DeleteFieldTemplate(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "delete_template", err)
		return
	}
	if err := h.Records.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.fail(c, "delete_template", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

// Clients

// clientReq carries one value per template, keyed by template id.
type clientReq struct {
	Fields map[string]string `json:"fields"`
}

func (r clientReq) values() (map[uint64]string, error) {
	out := make(map[uint64]string, len(r.Fields))
	for k, v := range r.Fields {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil || id == 0 {
			return nil, common.Invalid("invalid template id %q", k)
		}
		out[id] = v
	}
	return out, nil
}

func (h *Handler) bindClient(c *gin.Context) (map[uint64]string, error) {
	var req clientReq
	if err := bindJSON(c, &req); err != nil {
		return nil, err
	}
	return req.values()
}

func (h *Handler) ListClients(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	recs, err := h.Records.ListClients(c.Request.Context(), caller, strings.TrimSpace(c.Query("username")))
	if err != nil {
		h.fail(c, "list_clients", err)
		return
	}
	common.OK(c, gin.H{"clients": recs})
}

func (h *Handler) CreateClient(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	values, err := h.bindClient(c)
	if err != nil {
		h.fail(c, "create_client", err)
		return
	}
	rec, err := h.Records.CreateClient(c.Request.Context(), caller, values)
	if err != nil {
		h.fail(c, "create_client", err)
		return
	}
	common.OK(c, gin.H{"client": rec})
}

func (h *Handler) GetClient(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "get_client", err)
		return
	}
	rec, err := h.Records.GetClient(c.Request.Context(), caller, id)
	if err != nil {
		h.fail(c, "get_client", err)
		return
	}
	common.OK(c, gin.H{"client": rec})
}

func (h *Handler) UpdateClient(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "update_client", err)
		return
	}
	values, err := h.bindClient(c)
	if err != nil {
		h.fail(c, "update_client", err)
		return
	}
	rec, err := h.Records.UpdateClient(c.Request.Context(), caller, id, values)
	if err != nil {
		h.fail(c, "update_client", err)
		return
	}
	common.OK(c, gin.H{"client": rec})
}

func (h *Handler) DeleteClient(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "delete_client", err)
		return
	}
	if err := h.Records.DeleteClient(c.Request.Context(), caller, id); err != nil {
		h.fail(c, "delete_client", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

type recordDetail struct {
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
}

type recordJSON struct {
	ID           uint64         `json:"id"`
	CreatedBy    string         `json:"created_by"`
	CreationDate time.Time      `json:"creation_date"`
	Details      []recordDetail `json:"details"`
}

// ListRecords serves the flat record listing used by the dashboard table.
func (h *Handler) ListRecords(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	recs, err := h.Records.ListClients(c.Request.Context(), caller, strings.TrimSpace(c.Query("username")))
	if err != nil {
		h.fail(c, "records", err)
		return
	}
	common.OK(c, gin.H{"records": flattenRecords(recs)})
}

func flattenRecords(recs []records.Record) []recordJSON {
	out := make([]recordJSON, 0, len(recs))
	for _, r := range recs {
		details := make([]recordDetail, 0, len(r.Fields))
		for _, f := range r.Fields {
			details = append(details, recordDetail{FieldName: f.Name, FieldValue: f.Value})
		}
		out = append(out, recordJSON{
			ID:           r.ID,
			CreatedBy:    r.OwnerUsername,
			CreationDate: r.CreatedAt,
			Details:      details,
		})
	}
	return out
}
