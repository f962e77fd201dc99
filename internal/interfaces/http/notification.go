package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"finsync/internal/domain/notification"
)

type NotificationHandler struct {
	notificationService *notification.Service
	log                 zerolog.Logger
}

func NewNotificationHandler(notificationService *notification.Service, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log.With().Str("handler", "notification").Logger(),
	}
}

type RegisterDeviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := notification.CreateDeviceTokenParams{
		UserID:     userID,
		Token:      req.Token,
		DeviceType: req.DeviceType,
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dt, err := h.notificationService.RegisterDevice(r.Context(), params)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to register device")
		return
	}
	writeJSON(w, http.StatusOK, dt)
}
