package websocket

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler upgrades an authenticated request on "/ws" and blocks until the
// connection is gone.
func (s *Server) Handler(c echo.Context) error {
	userID, ok := c.Get(UserIDKey).(int64)
	if !ok || userID <= 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing identity")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(context.WithoutCancel(c.Request().Context()), conn, userID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run(s.chat)
	<-client.Context().Done()
	return nil
}
