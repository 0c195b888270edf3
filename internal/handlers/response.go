package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/middleware"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Response is the envelope of every API response
type Response struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:   http.StatusBadRequest,
	apperrors.KindUnauthorized: http.StatusUnauthorized,
	apperrors.KindForbidden:    http.StatusForbidden,
	apperrors.KindNotFound:     http.StatusNotFound,
	apperrors.KindConflict:     http.StatusConflict,
	apperrors.KindInternal:     http.StatusInternalServerError,
}

// fail translates a service error into an echo HTTP error
func fail(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	status, ok := kindStatus[apperrors.KindOf(err)]
	if !ok {
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, apperrors.Message(err)).SetInternal(err)
}

// ErrorHandler renders every error in the response envelope
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) {
			httpErr = fail(err).(*echo.HTTPError)
		}

		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		if httpErr.Code >= http.StatusInternalServerError {
			cause := err
			if httpErr.Internal != nil {
				cause = httpErr.Internal
			}
			log.Error("request error", zap.String("uri", c.Request().RequestURI), zap.Error(cause))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(httpErr.Code)
		} else {
			err = respond(c, httpErr.Code, nil, message)
		}
		if err != nil {
			log.Error("failed to write error response", zap.Error(err))
		}
	}
}

func actorOf(c echo.Context) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized request")
	}
	return actor, nil
}

func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// bind decodes the request into req and runs the registered validator
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return fail(err)
	}
	return nil
}
