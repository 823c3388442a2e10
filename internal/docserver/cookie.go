package docserver

import (
	"time"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/gofiber/fiber/v2"
	jwtV5 "github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "docgen_session"

// sessionCookies issues and checks the signed cookie that binds a browser to
// its form session. The session itself stays on the server; the cookie only
// carries its id.
type sessionCookies struct {
	issuer string
	secret []byte
	ttl    time.Duration
	secure bool
}

func (sc *sessionCookies) generate(sessionID, documentID string) (*fiber.Cookie, error) {

	now := time.Now()
	claims := jwtV5.MapClaims{
		"iss": sc.issuer,
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(sc.ttl).Unix(),
		// Custom claims
		"document_id": documentID,
	}

	token, err := jwtV5.NewWithClaims(jwtV5.SigningMethodHS256, claims).SignedString(sc.secret)
	if err != nil {
		return nil, errl.Errorf("failed to sign session token: %w", err)
	}

	cookie := new(fiber.Cookie)
	cookie.Name = sessionCookieName
	cookie.Value = token
	cookie.Path = "/"
	cookie.HTTPOnly = true
	cookie.Secure = sc.secure
	cookie.SameSite = fiber.CookieSameSiteLaxMode
	cookie.Expires = now.Add(sc.ttl)

	return cookie, nil
}

// parse returns the session id carried by a cookie value.
func (sc *sessionCookies) parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errl.Errorf("empty session token")
	}

	token, err := jwtV5.Parse(tokenString, func(token *jwtV5.Token) (any, error) {
		return sc.secret, nil
	},
		jwtV5.WithValidMethods([]string{jwtV5.SigningMethodHS256.Alg()}),
		jwtV5.WithIssuer(sc.issuer),
		jwtV5.WithExpirationRequired(),
	)
	if err != nil {
		return "", errl.Errorf("failed to parse session token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errl.Errorf("invalid session token")
	}

	return sub, nil
}
