package common

// File permission constants shared by everything that writes to disk.
const (
	// FilePermissionSecure is used for the config file and credentials.
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for published snapshots and metrics.
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for the config and credentials directories.
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for snapshot directories.
	DirPermissionNormal = 0755
)
