// Package scopedtoken issues and verifies anti-forgery tokens bound to a
// principal and an operation scope.
//
// Tokens are HS256 JWTs with the claims sub, scp, jti, iat and exp. A token
// verifies at most once: the jti is consumed on the first successful check.
//
//	tokens := scopedtoken.New(secret, 15*time.Minute)
//	tok, _, _ := tokens.Issue(adminID, scopedtoken.StartScope(targetID))
//	err := tokens.Verify(tok, adminID, scopedtoken.StartScope(targetID))
package scopedtoken
