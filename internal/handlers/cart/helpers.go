package cart

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkravets/parts_store/internal/cart"
)

const sessionCookie = "cart_session"

// session returns the cart bound to the request's session cookie, minting a
// new session id when the cookie is missing.
func (h *CartHandler) session(c echo.Context) (string, cart.Cart) {
	if ck, err := c.Cookie(sessionCookie); err == nil && ck.Value != "" {
		return ck.Value, h.Sessions.Get(ck.Value)
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, cart.Cart{}
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", c.Path(), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
