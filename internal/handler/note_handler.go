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

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.List(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req domain.PutNoteRequest
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
	if req.Entity.Title == "" {
		response.UnprocessableEntity(w, "title is required")
		return
	}

	note, err := h.service.Put(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	if err := h.service.Delete(middleware.GetUserID(r), middleware.GetDeviceID(r), noteID); err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, nil)
}
