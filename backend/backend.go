// Package backend serves the approval API as JSON over HTTP.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/srdaspradeep-gif/DMsDoc/core"
	"go.uber.org/zap"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// context holds what the handlers need besides the http request
type context struct {
	db       *core.CoreDB
	log      *zap.Logger
	sessions *scs.SessionManager
	req      *http.Request
	UserID   string // empty if not logged in
}

func (ctx *context) LoggedIn() bool {
	return ctx.UserID != ""
}

// Login checks the credentials and stores the user id in the session.
func (ctx *context) Login(username, password string) (*core.User, error) {
	u, err := ctx.db.LoginUser(ctx.req.Context(), username, password)
	if err != nil {
		return nil, err
	}
	if err := ctx.sessions.RenewToken(ctx.req.Context()); err != nil {
		return nil, err
	}
	ctx.sessions.Put(ctx.req.Context(), "uid", u.ID)
	ctx.UserID = u.ID
	return u, nil
}

func (ctx *context) Logout() error {
	ctx.sessions.Remove(ctx.req.Context(), "uid")
	ctx.UserID = ""
	return ctx.sessions.RenewToken(ctx.req.Context())
}

type handler func(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error

type server struct {
	db       *core.CoreDB
	log      *zap.Logger
	sessions *scs.SessionManager
}

// middleware loads the session user and, if action is not zero, requires a login and the permission for action on the approvals module.
func (s *server) middleware(action core.Permission, f handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)

		var ctx = &context{
			db:       s.db,
			log:      s.log,
			sessions: s.sessions,
			req:      req,
			UserID:   s.sessions.GetString(req.Context(), "uid"),
		}

		var err error
		if action != 0 {
			if !ctx.LoggedIn() {
				err = ErrNotLoggedIn
			} else {
				err = s.db.RequirePermission(req.Context(), ctx.UserID, core.ModuleApprovals, action)
			}
		}
		if err == nil {
			err = f(w, req, ctx, params)
		}
		if err != nil {
			s.writeError(w, req, err)
		}
	}
}

// NewRouter returns the API handler, including session handling and the /metrics endpoint.
func NewRouter(db *core.CoreDB, sessions *scs.SessionManager, log *zap.Logger) http.Handler {

	var s = &server{
		db:       db,
		log:      log,
		sessions: sessions,
	}

	var router = httprouter.New()

	// public
	router.POST("/login", s.middleware(0, login))
	router.POST("/logout", s.middleware(0, logout))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	// folders and files
	router.POST("/folders", s.middleware(core.PermCreate, createFolder))
	router.GET("/folders/:id/rule", s.middleware(core.PermRead, applicableRule))
	router.POST("/files", s.middleware(core.PermCreate, createFile))

	// workflows
	router.GET("/workflows", s.middleware(core.PermRead, workflows))
	router.POST("/workflows", s.middleware(core.PermCreate, createWorkflow))
	router.GET("/workflows/:id", s.middleware(core.PermRead, workflow))
	router.DELETE("/workflows/:id", s.middleware(core.PermCreate, cancelWorkflow))
	router.DELETE("/workflows/:id/purge", s.middleware(core.PermAdmin, purgeWorkflow))
	router.GET("/my-approvals", s.middleware(core.PermRead, myApprovals))
	router.POST("/steps/:id/decision", s.middleware(core.PermApprove, decide))

	// folder rules
	router.GET("/folder-rules", s.middleware(core.PermRead, rules))
	router.POST("/folder-rules", s.middleware(core.PermAdmin, createRule))
	router.GET("/folder-rules/:id", s.middleware(core.PermRead, rule))
	router.PATCH("/folder-rules/:id", s.middleware(core.PermAdmin, updateRule))
	router.DELETE("/folder-rules/:id", s.middleware(core.PermAdmin, deleteRule))

	// notifications
	router.GET("/notifications", s.middleware(core.PermRead, notifications))
	router.GET("/notifications/unread-count", s.middleware(core.PermRead, unreadCount))
	router.POST("/notifications/mark-all-read", s.middleware(core.PermRead, markAllRead))
	router.PATCH("/notifications/:id", s.middleware(core.PermRead, markRead))
	router.GET("/notifications/settings", s.middleware(core.PermRead, settings))
	router.PUT("/notifications/settings", s.middleware(core.PermRead, putSettings))

	// users
	router.GET("/users", s.middleware(core.PermRead, users))
	router.PUT("/users/:id/permission", s.middleware(core.PermAdmin, access))

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	return sessions.LoadAndSave(router)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(req *http.Request, v interface{}) error {
	var dec = json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", core.ErrInvalid, err)
	}
	return nil
}

// page reads the skip and limit query parameters.
func page(req *http.Request) (limit, offset int, err error) {
	var query = req.URL.Query()
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("%w: limit: %v", core.ErrInvalid, err)
		}
	}
	if s := query.Get("skip"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, fmt.Errorf("%w: skip: %v", core.ErrInvalid, err)
		}
	}
	return limit, offset, nil
}

// boolParam reads an optional boolean query parameter.
func boolParam(req *http.Request, name string) (*bool, error) {
	var s = req.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalid, name, err)
	}
	return &b, nil
}

var ErrNotLoggedIn = errors.New("not logged in")
