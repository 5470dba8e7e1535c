package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

func notifications(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	limit, offset, err := page(req)
	if err != nil {
		return err
	}

	isRead, err := boolParam(req, "is_read")
	if err != nil {
		return err
	}

	all, err := ctx.db.ListNotifications(req.Context(), core.NotificationFilter{
		UserID: ctx.UserID,
		IsRead: isRead,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	var views = []notificationView{}
	for _, n := range all {
		views = append(views, newNotificationView(n))
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}

func unreadCount(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	count, err := ctx.db.CountUnread(req.Context(), ctx.UserID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
	return nil
}

func markRead(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	n, err := ctx.db.MarkNotificationRead(req.Context(), ctx.UserID, params.ByName("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newNotificationView(n))
	return nil
}

func markAllRead(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	count, err := ctx.db.MarkAllNotificationsRead(req.Context(), ctx.UserID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
	return nil
}

func settings(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	s, err := ctx.db.GetNotificationSettings(req.Context(), ctx.UserID, req.URL.Query().Get("event_type"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newSettingsView(s))
	return nil
}

func putSettings(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var data settingsView
	if err := readJSON(req, &data); err != nil {
		return err
	}

	s, err := ctx.db.PutNotificationSettings(req.Context(), core.NotificationSettings{
		UserID:        ctx.UserID,
		EventType:     data.EventType,
		Mode:          core.NotificationMode(data.Mode),
		GroupInterval: core.GroupInterval(data.GroupInterval),
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newSettingsView(s))
	return nil
}
