package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/middleware"
)

// ProfileHandler serves the caller's profile and profile lookups.
type ProfileHandler struct{}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Me returns the caller's profile, creating it on first use (GET /api/profile).
func (h *ProfileHandler) Me(c echo.Context) error {
	return h.get(c, "")
}

// Get returns profile :id (GET /api/profiles/:id).
func (h *ProfileHandler) Get(c echo.Context) error {
	return h.get(c, c.Param("id"))
}

func (h *ProfileHandler) get(c echo.Context, id string) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	profile, err := services.Profiles.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Update patches the caller's profile (PATCH /api/profile).
func (h *ProfileHandler) Update(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var patch domain.ProfileUpdate
	if err := c.Bind(&patch); err != nil {
		return err
	}
	profile, err := services.Profiles.Update(c.Request().Context(), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Search finds profiles by display name, excluding the caller
// (GET /api/profiles?q=).
func (h *ProfileHandler) Search(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var req SearchProfilesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	profiles, err := services.Profiles.Search(c.Request().Context(), domain.ProfileSearch{
		Query: req.Query,
		Limit: req.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profiles)
}

// UploadAvatar stores the multipart "file" as the caller's avatar
// (PUT /api/profile/avatar).
func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return &domain.ValidationError{Field: "file", Reason: "is required"}
	}

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer src.Close()

	profile, err := services.Profiles.UploadAvatar(ctx, fileHeader.Filename,
		fileHeader.Header.Get(echo.HeaderContentType), fileHeader.Size, src)
	if err != nil {
		return err
	}

	resp := AvatarResponse{Profile: profile}
	if profile.AvatarURL != nil {
		resp.AvatarURL = *profile.AvatarURL
	}
	return c.JSON(http.StatusOK, resp)
}

// RemoveAvatar clears the caller's avatar (DELETE /api/profile/avatar).
func (h *ProfileHandler) RemoveAvatar(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	profile, err := services.Profiles.RemoveAvatar(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}
