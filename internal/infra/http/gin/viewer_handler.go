package ginserver

import (
	"fmt"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/dto"
	viewerapp "tinyhouse/internal/app/handlers/viewer"
)

type ViewerHandler struct {
	Commands commands.Bus
}

type connectWalletRequest struct {
	Code string `json:"code"`
}

func (h ViewerHandler) ConnectWallet(c *gin.Context) {
	var req connectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	cmd := viewerapp.ConnectWalletCommand{Credentials: credentials(c), Code: req.Code}
	result, err := commands.Dispatch[viewerapp.ConnectWalletCommand, *dto.Viewer](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ViewerHandler) DisconnectWallet(c *gin.Context) {
	cmd := viewerapp.DisconnectWalletCommand{Credentials: credentials(c)}
	result, err := commands.Dispatch[viewerapp.DisconnectWalletCommand, *dto.Viewer](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ViewerHTTP = ViewerHandler{}
