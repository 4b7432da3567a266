package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/daycare"
)

const (
	tokenContextKey    = "guardianToken"
	guardianContextKey = "guardian"
	tokenAudience      = "guardians"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (c Claims) person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

type authenticator struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.Server.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) guardianClaims(g daycare.Guardian) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   g.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: g.Username,
		Email:    g.Email,
	}
}

// GenerateToken returns a signed bearer token for g, valid for conf.Server.JWTExpirationDelta.
func GenerateToken(conf *core.Config, g daycare.Guardian) (string, error) {
	a := newAuthenticator(conf)
	return a.sign(a.guardianClaims(g))
}

func (a *authenticator) sign(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// guardianMiddleware loads the authenticated guardian and refuses deactivated accounts.
func guardianMiddleware(svc *daycare.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Audience != tokenAudience {
				return errHttpForbidden
			}
			g, err := svc.GetGuardian(claims.Subject)
			if err != nil {
				if errors.Cause(err) == daycare.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "getting guardian")
			}
			if !g.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(guardianContextKey, g)
			return next(ctx)
		}
	}
}

func getContextGuardian(ctx echo.Context) (daycare.Guardian, error) {
	if g, ok := ctx.Get(guardianContextKey).(daycare.Guardian); ok {
		return g, nil
	}
	return daycare.Guardian{}, errUnauthorized
}
