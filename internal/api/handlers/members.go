package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/groups"
	"github.com/hugh/poolparty/internal/members"
)

type MemberHandler struct {
	members *members.Service
	groups  *groups.Service
	logger  *slog.Logger
}

func NewMemberHandler(memberService *members.Service, groupService *groups.Service, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: memberService, groups: groupService, logger: logger}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.members.Search(r.Context(), r.URL.Query().Get("q"), middleware.GetClaims(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, list, len(list))
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.members.Get(r.Context(), id, middleware.GetClaims(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var patch members.AdminPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	m, err := h.members.Update(r.Context(), middleware.GetClaims(r.Context()), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.members.Delete(r.Context(), middleware.GetClaims(r.Context()), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member deleted"})
}

func (h *MemberHandler) SetGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dto.MemberGroupsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids, err := h.groups.SetMemberGroups(r.Context(), id, req.GroupIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MemberGroupsResponse{GroupIDs: ids})
}

func (h *MemberHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	m, err := h.members.GetProfile(r.Context(), middleware.GetClaims(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch members.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	m, err := h.members.UpdateProfile(r.Context(), middleware.GetClaims(r.Context()), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.members.DeleteAccount(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Account deleted"})
}
