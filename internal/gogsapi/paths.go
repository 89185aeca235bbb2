package gogsapi

import (
	"net/url"
	"strings"
)

const (
	apiRootPathConstant         = "/api/v1"
	pathSeparatorConstant       = "/"
	usersSegmentConstant        = "users"
	userSegmentConstant         = "user"
	adminSegmentConstant        = "admin"
	organizationSegmentConstant = "org"
	repositoriesSegmentConstant = "repos"
	keysSegmentConstant         = "keys"
	migrateSegmentConstant      = "migrate"
	mirrorSyncSegmentConstant   = "mirror-sync"
)

// UserPath addresses a user for existence checks.
func UserPath(username string) string {
	return joinAPIPath(usersSegmentConstant, username)
}

// AdminUsersPath addresses the administrative user creation endpoint.
func AdminUsersPath() string {
	return joinAPIPath(adminSegmentConstant, usersSegmentConstant)
}

// AdminUserPath addresses a user for administrative update and deletion.
func AdminUserPath(username string) string {
	return joinAPIPath(adminSegmentConstant, usersSegmentConstant, username)
}

// AdminUserKeysPath addresses the SSH key collection of a user.
func AdminUserKeysPath(username string) string {
	return joinAPIPath(adminSegmentConstant, usersSegmentConstant, username, keysSegmentConstant)
}

// RepositoryPath addresses a repository for existence checks and deletion.
func RepositoryPath(owner string, name string) string {
	return joinAPIPath(repositoriesSegmentConstant, owner, name)
}

// RepositoryKeysPath addresses the deploy key collection of a repository.
func RepositoryKeysPath(owner string, name string) string {
	return joinAPIPath(repositoriesSegmentConstant, owner, name, keysSegmentConstant)
}

// MirrorSyncPath addresses the mirror synchronization trigger of a repository.
func MirrorSyncPath(owner string, name string) string {
	return joinAPIPath(repositoriesSegmentConstant, owner, name, mirrorSyncSegmentConstant)
}

// MigrateRepositoryPath addresses the repository migration endpoint.
func MigrateRepositoryPath() string {
	return joinAPIPath(repositoriesSegmentConstant, migrateSegmentConstant)
}

func joinAPIPath(segments ...string) string {
	escapedSegments := make([]string, 0, len(segments)+1)
	escapedSegments = append(escapedSegments, apiRootPathConstant)
	for _, segment := range segments {
		escapedSegments = append(escapedSegments, url.PathEscape(strings.TrimSpace(segment)))
	}
	return strings.Join(escapedSegments, pathSeparatorConstant)
}
