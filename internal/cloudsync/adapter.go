// Package cloudsync copies the financial document to and from a single
// backup file in the user's Google Drive. Payloads are opaque bytes; the
// adapter only checks that a downloaded backup is JSON.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/financial-control/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const (
	// FolderName is the drive folder holding the backup.
	FolderName = "Financial Control"
	// BackupFileName is the name of the backup file inside FolderName.
	BackupFileName = "financial-control-backup.json"

	clientIDSuffix = ".apps.googleusercontent.com"
)

// Credentials identify the Google Cloud project. They are kept in memory only.
type Credentials struct {
	APIKey       string
	ClientID     string
	ClientSecret string
}

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateSignedIn:
		return "signed_in"
	default:
		return "uninitialized"
	}
}

// Adapter is the Drive sync adapter. It is safe for concurrent use;
// operations are serialized. The state can be read while an operation,
// such as an interactive sign-in, is in progress.
type Adapter struct {
	mu       sync.Mutex
	creds    *Credentials
	state    atomic.Int32 // State; written with mu held
	hasCreds atomic.Bool
	config   *oauth2.Config
	drive    DriveService
	token    *oauth2.Token
	folderID string

	auth    Authenticator
	factory DriveFactory
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAuthenticator sets the sign-in flow. Defaults to a LoopbackAuthenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(ad *Adapter) { ad.auth = a }
}

// WithDriveFactory sets how the DriveService is built. Defaults to GoogleDriveFactory.
func WithDriveFactory(f DriveFactory) Option {
	return func(ad *Adapter) { ad.factory = f }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(ad *Adapter) { ad.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ad *Adapter) { ad.metrics = m }
}

// NewAdapter returns an uninitialized adapter.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		auth:    &LoopbackAuthenticator{},
		factory: GoogleDriveFactory,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetCredentials stores creds. Setting credentials on an initialized adapter
// resets it, dropping the session and the cached folder.
func (a *Adapter) SetCredentials(creds Credentials) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := creds
	a.creds = &c
	a.hasCreds.Store(true)
	if a.State() != StateUninitialized {
		a.log.Info().Msg("Credentials replaced, resetting drive session")
	}
	a.setState(StateUninitialized)
	a.config = nil
	a.drive = nil
	a.token = nil
	a.folderID = ""
}

// HasCredentials reports whether credentials were set. Like State it does
// not wait for an operation in progress.
func (a *Adapter) HasCredentials() bool {
	return a.hasCreds.Load()
}

// State returns the current lifecycle state. It does not wait for an
// operation in progress.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

func (a *Adapter) setState(s State) {
	a.state.Store(int32(s))
}

// IsAuthenticated reports whether the adapter holds a user session.
func (a *Adapter) IsAuthenticated() bool {
	return a.State() == StateSignedIn
}

// Initialize builds the OAuth2 config and the Drive client. It is a no-op
// once the adapter is initialized.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initializeLocked(ctx)
}

func (a *Adapter) initializeLocked(ctx context.Context) error {
	if a.State() != StateUninitialized {
		return nil
	}
	if err := validateCredentials(a.creds); err != nil {
		return err
	}

	cfg := &oauth2.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	svc, err := a.factory(ctx, cfg, *a.creds)
	if err != nil {
		return &InitializationError{Reason: "create drive client", Err: err}
	}

	a.config = cfg
	a.drive = svc
	a.setState(StateInitialized)
	a.log.Debug().Str("state", a.State().String()).Msg("Drive sync initialized")
	return nil
}

func validateCredentials(c *Credentials) error {
	switch {
	case c == nil:
		return &InitializationError{Reason: "credentials not set"}
	case strings.TrimSpace(c.APIKey) == "":
		return &InitializationError{Reason: "api key is empty"}
	case strings.TrimSpace(c.ClientID) == "":
		return &InitializationError{Reason: "client id is empty"}
	case !strings.HasSuffix(c.ClientID, clientIDSuffix):
		return &InitializationError{Reason: "client id must end with " + clientIDSuffix}
	}
	return nil
}

// SignIn runs the interactive sign-in. It is a no-op when already signed in.
func (a *Adapter) SignIn(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() == StateUninitialized {
		return &InitializationError{Reason: "adapter not initialized"}
	}
	return a.signInLocked(ctx)
}

func (a *Adapter) signInLocked(ctx context.Context) error {
	if a.State() == StateSignedIn {
		return nil
	}
	start := time.Now()
	tok, err := a.auth.Authenticate(ctx, a.config)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("provider returned no access token")
	}
	a.metrics.SyncOp("sign_in", start, err)
	if err != nil {
		return &AuthenticationError{Err: err}
	}

	a.token = tok
	a.setState(StateSignedIn)
	a.log.Info().Msg("Signed in to Google Drive")
	return nil
}

// SignOut revokes the session. It is a no-op when not signed in. The adapter
// returns to the initialized state even when revocation fails.
func (a *Adapter) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() != StateSignedIn {
		return nil
	}
	tok := a.token
	a.token = nil
	a.setState(StateInitialized)

	if err := a.auth.Revoke(ctx, tok); err != nil {
		a.log.Warn().Err(err).Msg("Token revocation failed")
		return &SyncError{Op: "sign out", Err: err}
	}
	a.log.Info().Msg("Signed out of Google Drive")
	return nil
}

// ensureSessionLocked initializes and signs in as needed.
func (a *Adapter) ensureSessionLocked(ctx context.Context) error {
	if err := a.initializeLocked(ctx); err != nil {
		return err
	}
	return a.signInLocked(ctx)
}

// EnsureFolder returns the id of the backup folder, creating it when absent.
// The id is cached until the credentials change.
func (a *Adapter) EnsureFolder(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureSessionLocked(ctx); err != nil {
		return "", err
	}
	return a.folderLocked(ctx)
}

func (a *Adapter) folderLocked(ctx context.Context) (string, error) {
	if a.folderID != "" {
		return a.folderID, nil
	}

	id, err := a.drive.FindFolder(ctx, a.token, FolderName)
	if err != nil {
		return "", &SyncError{Op: "find folder", Err: err}
	}
	if id == "" {
		id, err = a.drive.CreateFolder(ctx, a.token, FolderName)
		if err != nil {
			return "", &SyncError{Op: "create folder", Err: err}
		}
		a.log.Info().Str("folder_id", id).Msg("Created drive folder")
	}
	a.folderID = id
	return id, nil
}

func (a *Adapter) findBackupLocked(ctx context.Context, folderID string) (*RemoteFile, error) {
	files, err := a.drive.ListFiles(ctx, a.token, folderID, FileQuery{Name: BackupFileName})
	if err != nil {
		return nil, &SyncError{Op: "list files", Err: err}
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// SaveToDrive uploads payload as the backup file, overwriting any previous one.
func (a *Adapter) SaveToDrive(ctx context.Context, payload []byte) (rf RemoteFile, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() { a.metrics.SyncOp("save", start, err) }()

	if err := a.ensureSessionLocked(ctx); err != nil {
		return RemoteFile{}, err
	}
	folderID, err := a.folderLocked(ctx)
	if err != nil {
		return RemoteFile{}, err
	}
	existing, err := a.findBackupLocked(ctx, folderID)
	if err != nil {
		return RemoteFile{}, err
	}

	var fileID string
	if existing != nil {
		fileID = existing.ID
	}
	rf, err = a.drive.UploadFile(ctx, a.token, folderID, fileID, BackupFileName, payload)
	if err != nil {
		return RemoteFile{}, &SyncError{Op: "upload", Err: err}
	}

	a.log.Info().
		Str("file_id", rf.ID).
		Bool("overwrite", fileID != "").
		Int("bytes", len(payload)).
		Msg("Backup saved to Google Drive")
	return rf, nil
}

// LoadFromDrive downloads the backup file. It returns a *NotFoundError when
// there is no backup and a *SyncError when the backup is not JSON.
func (a *Adapter) LoadFromDrive(ctx context.Context) (payload []byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() { a.metrics.SyncOp("load", start, err) }()

	if err := a.ensureSessionLocked(ctx); err != nil {
		return nil, err
	}
	folderID, err := a.folderLocked(ctx)
	if err != nil {
		return nil, err
	}
	backup, err := a.findBackupLocked(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if backup == nil {
		return nil, &NotFoundError{Name: BackupFileName}
	}

	payload, err = a.drive.DownloadFile(ctx, a.token, backup.ID)
	if err != nil {
		return nil, &SyncError{Op: "download", Err: err}
	}
	if !json.Valid(payload) {
		return nil, &SyncError{Op: "download", Err: errors.New("backup file is not valid JSON")}
	}

	a.log.Info().Str("file_id", backup.ID).Int("bytes", len(payload)).Msg("Backup loaded from Google Drive")
	return payload, nil
}

// ListBackups returns the files in the backup folder whose name contains
// "financial", most recent first.
func (a *Adapter) ListBackups(ctx context.Context) (files []RemoteFile, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() { a.metrics.SyncOp("list", start, err) }()

	if err := a.ensureSessionLocked(ctx); err != nil {
		return nil, err
	}
	folderID, err := a.folderLocked(ctx)
	if err != nil {
		return nil, err
	}
	files, err = a.drive.ListFiles(ctx, a.token, folderID, FileQuery{NameContains: "financial"})
	if err != nil {
		return nil, &SyncError{Op: "list files", Err: err}
	}
	return files, nil
}
