package handler

import (
	"encoding/json"
	"net/http"

	"notewire/internal/domain"
	"notewire/internal/middleware"
	"notewire/internal/service"
	"notewire/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// ChatHandler serves groups, memberships and messages.
type ChatHandler struct {
	service  *service.ChatService
	validate *validator.Validate
}

func NewChatHandler(service *service.ChatService) *ChatHandler {
	return &ChatHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ChatHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, groups)
}

func (h *ChatHandler) PutGroup(w http.ResponseWriter, r *http.Request) {
	var req domain.PutGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if id := mux.Vars(r)["id"]; req.Entity.ID != id {
		response.UnprocessableEntity(w, "entity id does not match path")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.UnprocessableEntity(w, err.Error())
		return
	}
	if req.Entity.Name == "" {
		response.UnprocessableEntity(w, "group name is required")
		return
	}

	group, err := h.service.PutGroup(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, group)
}

func (h *ChatHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	if groupID == "" {
		response.BadRequest(w, "Group ID is required")
		return
	}

	if err := h.service.DeleteGroup(middleware.GetUserID(r), middleware.GetDeviceID(r), groupID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, nil)
}

func (h *ChatHandler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.service.ListMemberships(middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, memberships)
}

func (h *ChatHandler) PutMembership(w http.ResponseWriter, r *http.Request) {
	var req domain.PutMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if id := mux.Vars(r)["id"]; req.Entity.ID != id {
		response.UnprocessableEntity(w, "entity id does not match path")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.UnprocessableEntity(w, err.Error())
		return
	}
	if req.Entity.GroupID == "" || req.Entity.UserID == "" {
		response.UnprocessableEntity(w, "group and user are required")
		return
	}

	membership, err := h.service.PutMembership(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, membership)
}

func (h *ChatHandler) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	membershipID := mux.Vars(r)["id"]
	if membershipID == "" {
		response.BadRequest(w, "Membership ID is required")
		return
	}

	if err := h.service.DeleteMembership(middleware.GetUserID(r), middleware.GetDeviceID(r), membershipID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, nil)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ListMessages(middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, messages)
}

func (h *ChatHandler) PutMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.PutMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if id := mux.Vars(r)["id"]; req.Entity.ID != id {
		response.UnprocessableEntity(w, "entity id does not match path")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.UnprocessableEntity(w, err.Error())
		return
	}
	if req.Entity.GroupID == "" || req.Entity.Body == "" {
		response.UnprocessableEntity(w, "group and body are required")
		return
	}

	message, err := h.service.PutMessage(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, message)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	if messageID == "" {
		response.BadRequest(w, "Message ID is required")
		return
	}

	if err := h.service.DeleteMessage(middleware.GetUserID(r), middleware.GetDeviceID(r), messageID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, nil)
}
