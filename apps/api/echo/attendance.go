package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
)

type attendanceApi struct {
	svc  *daycare.Service
	auth *authenticator
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc *daycare.Service) {
	api := attendanceApi{svc: svc, auth: auth}
	guardian := guardianMiddleware(svc)

	g.GET("/school/settings", api.settings, jwt, guardian)
	g.POST("/auth/token-refresh", api.refreshToken, jwt, guardian)

	ag := g.Group("/attendance", jwt, guardian)
	ag.GET("/my-children/status", api.childrenStatus)
	ag.POST("/qr/validate", api.validateCode)
	ag.POST("/qr/check-in", api.checkIn)
	ag.POST("/qr/check-out", api.checkOut)
}

type (
	ValidateCodeRequest struct {
		Code string `json:"code" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func (vr *ValidateCodeRequest) Validate() error {
	vr.Code = core.CleanString(vr.Code)
	return core.CheckStruct(vr)
}

// Handlers

func (api *attendanceApi) settings(ctx echo.Context) error {
	settings, err := api.svc.Settings()
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *attendanceApi) refreshToken(ctx echo.Context) error {
	g, err := getContextGuardian(ctx)
	if err != nil {
		return err
	}
	token, err := api.auth.sign(api.auth.guardianClaims(g))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *attendanceApi) childrenStatus(ctx echo.Context) error {
	g, err := getContextGuardian(ctx)
	if err != nil {
		return err
	}
	statuses, err := api.svc.ChildrenStatus(g.ID)
	if err != nil {
		return errors.Wrap(err, "getting children status")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *attendanceApi) validateCode(ctx echo.Context) error {
	var data ValidateCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateCodeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	val, err := api.svc.ValidateCode(data.Code)
	if err != nil {
		return errors.Wrap(err, "validating code")
	}
	return ctx.JSON(http.StatusOK, val)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	return api.submit(ctx, attendance.CheckIn)
}

func (api *attendanceApi) checkOut(ctx echo.Context) error {
	return api.submit(ctx, attendance.CheckOut)
}

// submit answers 400 with the batch body when the whole batch is refused.
func (api *attendanceApi) submit(ctx echo.Context, action attendance.ScanAction) error {
	g, err := getContextGuardian(ctx)
	if err != nil {
		return err
	}
	var data attendance.CheckRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckRequest")
	}

	var res attendance.BatchResult
	if action == attendance.CheckOut {
		res, err = api.svc.CheckOut(g.ID, data)
	} else {
		res, err = api.svc.CheckIn(g.ID, data)
	}
	if err != nil {
		return errors.Wrap(err, "submitting "+string(action))
	}
	if !res.Success {
		return ctx.JSON(http.StatusBadRequest, res)
	}
	return ctx.JSON(http.StatusOK, res)
}
