package gallery

// StagingArea hands out private scratch directories for restores.
type StagingArea interface {
	// NewWorkspace creates an empty workspace named after id.
	NewWorkspace(id string) (Workspace, error)
}

// Workspace is a scratch directory owned by a single restore.
type Workspace interface {
	// Dir is where archive entries are extracted.
	Dir() string

	// Path returns the extracted location of an archive entry.
	Path(entry string) string

	// Park moves a live file aside and returns where it went, so it can be
	// moved back if the restore is rolled back.
	Park(livePath string) (string, error)

	// Cleanup securely removes the workspace and everything parked in it.
	Cleanup() error
}

// CredentialStore holds the device unlock credential.
type CredentialStore interface {
	Set(credential string) error
	HasDeviceLock() bool

	// DeviceCredential returns the stored credential, or ErrNoDeviceLock.
	DeviceCredential() (string, error)

	Verify(candidate string) (bool, error)
	Clear() error
}
