// Package keys derives the partition and sort keys for every access pattern
// of the accounts table.
//
// Each pattern owns a distinct PK/SK prefix pair so all entities share one
// table without collisions.
package keys

import (
	"strings"

	"github.com/jacentio/accounts/store"
)

const (
	prefixUser      = "USER#"
	prefixUserID    = "ID#"
	prefixUserEmail = "EMAIL#"
	prefixOrg       = "ORG#"
	prefixOrgName   = "NAME#"
	prefixOrgUsers  = "ORG_USERS#"
	prefixUserOrgs  = "USER_ORGS#"
)

// UserByID addresses the canonical user row.
func UserByID(id string) store.Key {
	return store.Key{PK: prefixUser + id, SK: prefixUserID + id}
}

// UserByEmail addresses the denormalized user row used for email lookups.
func UserByEmail(email string) store.Key {
	return store.Key{PK: prefixUser + email, SK: prefixUserEmail + email}
}

// OrgByName addresses the organization row used for name lookups.
func OrgByName(name string) store.Key {
	return store.Key{PK: prefixOrg + name, SK: prefixOrgName + name}
}

// OrgByID addresses the canonical organization row.
func OrgByID(id string) store.Key {
	return store.Key{PK: prefixOrg + id, SK: prefixOrg + id}
}

// OrgMember addresses the link row listing userID under orgID.
func OrgMember(orgID, userID string) store.Key {
	return store.Key{PK: prefixOrgUsers + orgID, SK: prefixUser + userID}
}

// UserOrg addresses the link row listing orgID under userID.
func UserOrg(userID, orgID string) store.Key {
	return store.Key{PK: prefixUserOrgs + userID, SK: prefixOrg + orgID}
}

// OrgMembers selects every member link row of orgID.
func OrgMembers(orgID string) store.KeyCondition {
	return store.KeyCondition{PK: prefixOrgUsers + orgID, SKPrefix: prefixUser}
}

// UserOrgs selects every organization link row of userID.
func UserOrgs(userID string) store.KeyCondition {
	return store.KeyCondition{PK: prefixUserOrgs + userID, SKPrefix: prefixOrg}
}

// IsUserIDRow reports whether key addresses a canonical user row.
func IsUserIDRow(key store.Key) bool {
	id, ok := strings.CutPrefix(key.PK, prefixUser)
	if !ok {
		return false
	}
	return key.SK == prefixUserID+id
}
