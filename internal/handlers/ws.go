package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return slices.Contains(types.AllowedOrigins, r.Header.Get("Origin"))
	},
}

// WebSocket streams the routed project's events until the client leaves.
func (h *Handler) WebSocket(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)

	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.Hub.Serve(projectID, userID, conn)
}
