package timesheet

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"facialtimesheet-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 画像つき遷移
	r.POST("/timesheet/check-in", h.CheckIn)
	r.POST("/timesheet/check-out", h.CheckOut)

	// 純粋な状態遷移
	r.POST("/timesheet/check-out/begin", h.BeginCheckOut)
	r.POST("/timesheet/check-out/cancel", h.CancelCheckOut)
	r.POST("/timesheet/reset", h.ResetSession)

	// 読み取り
	r.GET("/timesheet", h.History)
	r.GET("/timesheet/session", h.CurrentSession)
}

// ---------- handlers ----------

func (h *Handler) CheckIn(c *gin.Context) {
	userID := currentUser(c)
	image, contentType, err := readImage(c)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	res, err := h.svc.CheckIn(c.Request.Context(), userID, image, contentType)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CheckOut(c *gin.Context) {
	userID := currentUser(c)
	image, contentType, err := readImage(c)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	res, err := h.svc.CheckOut(c.Request.Context(), userID, image, contentType)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) BeginCheckOut(c *gin.Context) {
	res, err := h.svc.BeginCheckOut(currentUser(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelCheckOut(c *gin.Context) {
	res, err := h.svc.CancelCheckOut(currentUser(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ResetSession(c *gin.Context) {
	res, err := h.svc.ResetSession(currentUser(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Current(currentUser(c)))
}

func (h *Handler) History(c *gin.Context) {
	res, err := h.svc.History(c.Request.Context(), currentUser(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

// currentUser: RequireAuth が詰めた JWT sub を取り出す
func currentUser(c *gin.Context) string {
	return c.GetString(auth.CtxUserIDKey)
}

// readImage: multipart の "image" パートを読む。空は400。
func readImage(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, "", ErrInvalid("image part is required")
	}
	if fh.Size > MaxImageBytes {
		return nil, "", ErrInvalid("image too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", ErrInvalid("could not read image part")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, "", ErrInvalid("could not read image part")
	}
	if len(data) == 0 {
		return nil, "", ErrInvalid("image part is empty")
	}
	return data, fh.Header.Get("Content-Type"), nil
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
