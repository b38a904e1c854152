package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/hash"
	"github.com/mkravets/parts_store/internal/logging"
	"github.com/mkravets/parts_store/internal/models"
	"github.com/mkravets/parts_store/internal/mykafka"
	"github.com/mkravets/parts_store/internal/service"
)

var phoneRe = regexp.MustCompile(`^[0-9]{10,15}$`)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      mykafka.Publisher
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}, key string) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Login       string `json:"login"`
		Password    string `json:"password"`
		FirstName   string `json:"first_name"`
		SecondName  string `json:"second_name"`
		Patronymic  string `json:"patronymic"`
		Phone       string `json:"phone"`
		City        string `json:"city"`
		Region      string `json:"region"`
		HouseNumber int    `json:"house_number"`
	}

	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Login == "" || req.Password == "" || req.FirstName == "" || req.SecondName == "" {
		l.Warn("register_failed", "status", 400, "reason", "missing_fields")
		return echo.NewHTTPError(http.StatusBadRequest, "login, password and names are required")
	}
	if !phoneRe.MatchString(req.Phone) {
		l.Warn("register_failed", "status", 400, "reason", "bad_phone")
		return echo.NewHTTPError(http.StatusBadRequest, "phone must be 10-15 digits")
	}

	var existing models.User
	if err := h.DB.Where("login = ?", req.Login).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("register_error", "status", 500, "reason", "db_error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	} else {
		l.Warn("register_failed", "status", 409, "reason", "user_exists")
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var user models.User
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		address := models.Address{
			City:        req.City,
			Region:      req.Region,
			HouseNumber: req.HouseNumber,
		}
		if err := tx.Create(&address).Error; err != nil {
			return err
		}
		user = models.User{
			Login:        req.Login,
			PasswordHash: pwHash,
			Role:         models.RoleCustomer,
			FirstName:    req.FirstName,
			SecondName:   req.SecondName,
			Patronymic:   req.Patronymic,
			Phone:        req.Phone,
			AddressID:    &address.ID,
		}
		return tx.Create(&user).Error
	})
	if txErr != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"login":  user.Login,
	}, fmt.Sprint(user.ID))

	l.Info("register_success", "status", 200, "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"id": user.ID, "login": user.Login, "role": user.Role,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.Where("login = ?", req.Login).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid login or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid login or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
	}

	accessToken, err := service.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	refreshToken, err := service.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	if err := service.SaveRefreshToken(h.DB, refreshToken, user.ID, user.Role, service.NewJTI()); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store token")
	}

	c.SetCookie(service.CreateCookie("accessToken", accessToken, "/", time.Now().Add(service.AccessTokenTTL)))
	c.SetCookie(service.CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(service.RefreshTokenTTL)))

	h.publish(c, map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"login":  user.Login,
	}, fmt.Sprint(user.ID))

	l.Info("login_successful", "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusOK, echo.Map{
		"id":   user.ID,
		"role": user.Role,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if refreshCookie, err := c.Cookie("refreshToken"); err == nil {
		if err := service.RevokeRefreshToken(h.DB, refreshCookie.Value); err != nil {
			l.Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		}
	} else {
		l.Warn("logout_warning", "reason", "missing_refresh_cookie", "error", err)
	}

	c.SetCookie(service.DeleteCookie("refreshToken", "/"))
	c.SetCookie(service.DeleteCookie("accessToken", "/"))
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}

// Profile returns the logged-in user with the delivery address.
func (h *AuthHandler) Profile(c echo.Context) error {
	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	resp := echo.Map{"user": user}
	if user.AddressID != nil {
		var address models.Address
		if err := h.DB.First(&address, *user.AddressID).Error; err == nil {
			resp["address"] = address
		}
	}
	return c.JSON(http.StatusOK, resp)
}
