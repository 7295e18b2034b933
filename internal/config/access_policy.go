package config

import (
	"sort"
	"strings"
)

// AccessPolicy holds the privileged email allow-lists.  It is built once at
// startup and passed to the access layer; nothing reads the environment per
// request.
type AccessPolicy struct {
	admins      map[string]struct{}
	superAdmins map[string]struct{}
}

// NewAccessPolicy normalizes the lists.  When no super-admin list is given
// the admin list is used, and when neither list is set the single fallback
// address is the only admin.
func NewAccessPolicy(admins, superAdmins []string, fallback string) AccessPolicy {
	p := AccessPolicy{admins: toSet(admins), superAdmins: toSet(superAdmins)}
	if len(p.admins) == 0 {
		p.admins = toSet([]string{fallback})
	}
	if len(p.superAdmins) == 0 {
		p.superAdmins = p.admins
	}
	return p
}

// IsAdminEmail reports whether email is on either allow-list.
func (p AccessPolicy) IsAdminEmail(email string) bool {
	e := normalizeEmail(email)
	if e == "" {
		return false
	}
	_, a := p.admins[e]
	_, s := p.superAdmins[e]
	return a || s
}

// Emails returns the union of both lists in a stable order.
func (p AccessPolicy) Emails() []string {
	seen := make(map[string]struct{}, len(p.admins)+len(p.superAdmins))
	out := make([]string, 0, len(p.admins)+len(p.superAdmins))
	for _, set := range []map[string]struct{}{p.admins, p.superAdmins} {
		for e := range set {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, raw := range list {
		for _, part := range strings.Split(raw, ",") {
			if e := normalizeEmail(part); e != "" {
				set[e] = struct{}{}
			}
		}
	}
	return set
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
