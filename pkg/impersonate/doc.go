// Package impersonate manages administrator impersonation sessions.
//
// A principal is either Normal or Impersonating(origin). Start moves a target
// from Normal to Impersonating and switches the active session to the target;
// End clears the record and restores the session to the origin.
//
// A Record exists in the Repository exactly while its principal is being
// impersonated. Begin is a compare-and-set: it fails with ErrRecordExists
// instead of overwriting, so a target cannot be claimed by two administrators.
//
// # Usage
//
//	svc := impersonate.NewService(repo, principals, checker, settingsSvc,
//		impersonate.WithActivityLog(logs))
//
//	// Admin 1 switches into user 42
//	res, err := svc.Start(ctx, sess, 42)
//
//	// User 42 (really admin 1) switches back
//	out, err := svc.End(ctx, sess)
//
// Failures carry pkg/errors codes: FORBIDDEN when the requester lacks the
// administer capability or switching is disabled, INVALID_TARGET for a
// missing, unknown or self target, and ALREADY_IMPERSONATED on conflict.
package impersonate
