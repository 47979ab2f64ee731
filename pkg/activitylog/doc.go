// Package activitylog records security-relevant events: impersonation
// transitions, settings changes, blocked pages and log maintenance.
//
// Entries are listed newest first, 20 per page, and can be filtered by
// severity and event. A cron-driven Scheduler prunes entries older than the
// retention window.
//
//	logs := activitylog.NewService(repo, checker, activitylog.WithRetention(30*24*time.Hour))
//	_ = logs.Log(ctx, "user_switched", "Administrator switched into another user.",
//		map[string]interface{}{"from_admin_id": 1, "to_user_id": 42}, activitylog.SeverityWarning, 1)
package activitylog
