package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
)

// AuthCookieMiddleware takes the PocketBase auth token from the `pb_auth`
// cookie, resolves the auth record from it and places it on the request
// event, so browser clients work without an Authorization header.
func AuthCookieMiddleware() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id:   "authCookie",
		Func: authCookie,
	}
}

func authCookie(e *core.RequestEvent) error {
	if e.Auth != nil {
		return e.Next()
	}

	tokenCookie, err := e.Request.Cookie("pb_auth")
	if err != nil {
		return e.Next()
	}

	decodedCookie, err := url.QueryUnescape(tokenCookie.Value)
	if err != nil {
		return e.Next()
	}

	var cookieObject map[string]interface{}
	if err := json.Unmarshal([]byte(decodedCookie), &cookieObject); err != nil {
		return e.Next()
	}

	token, ok := cookieObject["token"].(string)
	if !ok {
		return e.Next()
	}

	record, err := e.App.FindAuthRecordByToken(token, core.TokenTypeAuth)
	if err != nil {
		return e.Next()
	}

	e.Auth = record
	return e.Next()
}

// RequireAuth rejects unauthenticated requests with a JSON 401.
func RequireAuth() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "requireAuth",
		Func: func(e *core.RequestEvent) error {
			if e.Auth == nil {
				return e.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}
			return e.Next()
		},
	}
}
