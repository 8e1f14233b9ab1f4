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

type FriendshipHandler struct {
	service  *service.FriendshipService
	validate *validator.Validate
}

func NewFriendshipHandler(service *service.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *FriendshipHandler) List(w http.ResponseWriter, r *http.Request) {
	friendships, err := h.service.List(middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, friendships)
}

func (h *FriendshipHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req domain.PutFriendshipRequest
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
	if req.Entity.RequesterID == "" || req.Entity.AddresseeID == "" {
		response.UnprocessableEntity(w, "requester and addressee are required")
		return
	}

	friendship, err := h.service.Put(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, friendship)
}

func (h *FriendshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	friendshipID := mux.Vars(r)["id"]
	if friendshipID == "" {
		response.BadRequest(w, "Friendship ID is required")
		return
	}

	if err := h.service.Delete(middleware.GetUserID(r), middleware.GetDeviceID(r), friendshipID); err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, nil)
}
