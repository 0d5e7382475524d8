package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
	"github.com/satriahrh/rapat/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, roomRepo repositories.RoomRepository, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "rapat-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Persona catalog
	v1.GET("/personas", listPersonas)

	// Room APIs
	v1.POST("/rooms", func(c echo.Context) error {
		return createRoom(c, roomRepo, logger)
	})
	v1.GET("/rooms", func(c echo.Context) error {
		return listRooms(c, roomRepo, logger)
	})
	v1.GET("/rooms/:id", func(c echo.Context) error {
		return getRoom(c, roomRepo, logger)
	})
	v1.DELETE("/rooms/:id", func(c echo.Context) error {
		return deleteRoom(c, roomRepo, logger)
	})

	// Room resource APIs
	v1.POST("/rooms/:id/resources", func(c echo.Context) error {
		return addFileResource(c, roomRepo, logger)
	})
	v1.POST("/rooms/:id/links", func(c echo.Context) error {
		return addLinkResource(c, roomRepo, logger)
	})
	v1.DELETE("/rooms/:id/resources/:resourceId", func(c echo.Context) error {
		return removeResource(c, roomRepo, logger)
	})

	// Report APIs
	v1.GET("/rooms/:id/reports", func(c echo.Context) error {
		return listReports(c, roomRepo, logger)
	})
	v1.POST("/rooms/:id/reports", func(c echo.Context) error {
		return saveReport(c, roomRepo, logger)
	})
	v1.GET("/rooms/:id/reports/:reportId/export", func(c echo.Context) error {
		return exportReport(c, roomRepo, logger)
	})

	// WebSocket endpoint for meeting clients
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func listPersonas(c echo.Context) error {
	return c.JSON(http.StatusOK, entities.Personas)
}

func createRoom(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	var req CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind create room request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Room name is required",
		})
	}

	persona, ok := entities.PersonaByID(req.PersonaID)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_persona",
			Message: fmt.Sprintf("Persona %q does not exist", req.PersonaID),
		})
	}
	if persona.ID == entities.CustomPersonaID {
		persona = persona.Clone(req.PersonaName)
	}

	room := &entities.Room{
		Name:      req.Name,
		Persona:   persona,
		Resources: []entities.RoomResource{},
		Reports:   []entities.RoomReport{},
	}
	if err := roomRepo.Create(c.Request().Context(), room); err != nil {
		logger.Error("Failed to create room", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to create room",
		})
	}

	logger.Info("Room created",
		zap.String("room_id", room.ID),
		zap.String("persona", room.Persona.ID))

	return c.JSON(http.StatusCreated, room)
}

func listRooms(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	rooms, err := roomRepo.List(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list rooms", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to list rooms",
		})
	}
	return c.JSON(http.StatusOK, rooms)
}

func getRoom(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func deleteRoom(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	if err := roomRepo.Delete(c.Request().Context(), room.ID); err != nil {
		logger.Error("Failed to delete room", zap.String("room_id", room.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to delete room",
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func addFileResource(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	var req AddFileResourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Name == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Resource name and content are required",
		})
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_content",
			Message: "Resource content must be base64 encoded",
		})
	}
	if len(data) > entities.MaxResourceSize {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "resource_too_large",
			Message: fmt.Sprintf("Resource %s exceeds the %d byte limit", req.Name, entities.MaxResourceSize),
		})
	}

	mimeType := entities.ResolveMimeType(req.Name, req.MimeType)
	if !entities.AcceptedUpload(req.Name, mimeType) {
		return c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Error:   "unsupported_type",
			Message: fmt.Sprintf("Files of type %s are not supported", mimeType),
		})
	}

	resource := entities.RoomResource{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Kind:     entities.Classify(req.Name, mimeType),
		MimeType: mimeType,
		Content:  req.Content,
		Size:     int64(len(data)),
	}
	room.Resources = append(room.Resources, resource)

	if err := roomRepo.Update(c.Request().Context(), room); err != nil {
		logger.Error("Failed to store resource", zap.String("room_id", room.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to store resource",
		})
	}
	return c.JSON(http.StatusCreated, resource)
}

func addLinkResource(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	var req AddLinkResourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	resource, err := entities.NewLinkResource(uuid.New().String(), req.Name, req.URL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Please provide a valid http or https URL",
		})
	}
	room.Resources = append(room.Resources, resource)

	if err := roomRepo.Update(c.Request().Context(), room); err != nil {
		logger.Error("Failed to store link", zap.String("room_id", room.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to store link",
		})
	}
	return c.JSON(http.StatusCreated, resource)
}

func removeResource(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	resourceID := c.Param("resourceId")
	kept := room.Resources[:0]
	found := false
	for _, res := range room.Resources {
		if res.ID == resourceID {
			found = true
			continue
		}
		kept = append(kept, res)
	}
	if !found {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "resource_not_found",
			Message: fmt.Sprintf("Resource %s not found", resourceID),
		})
	}
	room.Resources = kept

	if err := roomRepo.Update(c.Request().Context(), room); err != nil {
		logger.Error("Failed to remove resource", zap.String("room_id", room.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to remove resource",
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func listReports(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}
	if room.Reports == nil {
		room.Reports = []entities.RoomReport{}
	}
	return c.JSON(http.StatusOK, room.Reports)
}

func saveReport(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	var req SaveReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Title == "" || req.Summary == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Report title and summary are required",
		})
	}

	report := entities.RoomReport{
		ID:         uuid.New().String(),
		Title:      req.Title,
		Summary:    req.Summary,
		Transcript: req.Transcript,
		CreatedAt:  time.Now(),
	}
	if err := roomRepo.AppendReport(c.Request().Context(), room.ID, report); err != nil {
		logger.Error("Failed to save report", zap.String("room_id", room.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to save report",
		})
	}
	return c.JSON(http.StatusCreated, report)
}

func exportReport(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) error {
	room, err := fetchRoom(c, roomRepo, logger)
	if room == nil {
		return err
	}

	reportID := c.Param("reportId")
	for _, report := range room.Reports {
		if report.ID != reportID {
			continue
		}
		filename := fmt.Sprintf("meeting-summary-%s.md",
			report.CreatedAt.UTC().Format("2006-01-02T15-04-05"))
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", filename))
		return c.Blob(http.StatusOK, "text/markdown", []byte(report.Summary))
	}
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "report_not_found",
		Message: fmt.Sprintf("Report %s not found", reportID),
	})
}

// fetchRoom loads the room from the :id path param. On failure it writes the
// HTTP error response and returns a nil room; callers return the error as-is.
func fetchRoom(c echo.Context, roomRepo repositories.RoomRepository, logger *zap.Logger) (*entities.Room, error) {
	roomID := c.Param("id")
	room, err := roomRepo.GetByID(c.Request().Context(), roomID)
	if err != nil {
		logger.Error("Failed to load room", zap.String("room_id", roomID), zap.Error(err))
		return nil, c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to load room",
		})
	}
	if room == nil {
		return nil, c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "room_not_found",
			Message: fmt.Sprintf("Room %s not found", roomID),
		})
	}
	return room, nil
}
