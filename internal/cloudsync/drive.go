package cloudsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	jsonMimeType   = "application/json"
	fileFields     = "id, name, modifiedTime, size"
)

// RemoteFile describes a file in the user's drive.
type RemoteFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Size         int64     `json:"size"`
}

// FileQuery selects files inside a folder. Name matches exactly,
// NameContains matches a substring. Empty fields match everything.
type FileQuery struct {
	Name         string
	NameContains string
}

// DriveService defines the Drive operations the adapter needs.
// The access token is passed on every call.
type DriveService interface {
	// FindFolder returns the id of the first folder named name, or "" when there is none.
	FindFolder(ctx context.Context, tok *oauth2.Token, name string) (string, error)

	// CreateFolder creates a folder in the drive root and returns its id.
	CreateFolder(ctx context.Context, tok *oauth2.Token, name string) (string, error)

	// ListFiles returns the files in folderID matching q, most recently modified first.
	ListFiles(ctx context.Context, tok *oauth2.Token, folderID string, q FileQuery) ([]RemoteFile, error)

	// UploadFile overwrites fileID with content, or creates name in folderID when fileID is empty.
	UploadFile(ctx context.Context, tok *oauth2.Token, folderID, fileID, name string, content []byte) (RemoteFile, error)

	// DownloadFile returns the content of fileID.
	DownloadFile(ctx context.Context, tok *oauth2.Token, fileID string) ([]byte, error)
}

// DriveFactory builds the DriveService during Initialize.
type DriveFactory func(ctx context.Context, cfg *oauth2.Config, creds Credentials) (DriveService, error)

// GoogleDrive implements DriveService with the Drive v3 API.
type GoogleDrive struct {
	config *oauth2.Config
	apiKey string
	opts   []option.ClientOption
}

// NewGoogleDrive returns a DriveService authorizing each call through cfg.
// Extra client options are appended to every service built.
func NewGoogleDrive(cfg *oauth2.Config, apiKey string, opts ...option.ClientOption) *GoogleDrive {
	return &GoogleDrive{config: cfg, apiKey: apiKey, opts: opts}
}

// GoogleDriveFactory is the DriveFactory used unless the adapter is given another.
func GoogleDriveFactory(ctx context.Context, cfg *oauth2.Config, creds Credentials) (DriveService, error) {
	return NewGoogleDrive(cfg, creds.APIKey), nil
}

func (g *GoogleDrive) service(ctx context.Context, tok *oauth2.Token) (*drive.Service, error) {
	if tok == nil {
		return nil, fmt.Errorf("no access token")
	}
	opts := append([]option.ClientOption{
		option.WithTokenSource(g.config.TokenSource(ctx, tok)),
	}, g.opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return srv, nil
}

func (g *GoogleDrive) callOptions() []googleapi.CallOption {
	if g.apiKey == "" {
		return nil
	}
	return []googleapi.CallOption{googleapi.QueryParameter("key", g.apiKey)}
}

// FindFolder implements DriveService.
func (g *GoogleDrive) FindFolder(ctx context.Context, tok *oauth2.Token, name string) (string, error) {
	srv, err := g.service(ctx, tok)
	if err != nil {
		return "", err
	}
	list, err := srv.Files.List().
		Q(folderQuery(name)).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do(g.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("search folder %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// CreateFolder implements DriveService.
func (g *GoogleDrive) CreateFolder(ctx context.Context, tok *oauth2.Token, name string) (string, error) {
	srv, err := g.service(ctx, tok)
	if err != nil {
		return "", err
	}
	f, err := srv.Files.Create(&drive.File{Name: name, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do(g.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return f.Id, nil
}

// ListFiles implements DriveService.
func (g *GoogleDrive) ListFiles(ctx context.Context, tok *oauth2.Token, folderID string, q FileQuery) ([]RemoteFile, error) {
	srv, err := g.service(ctx, tok)
	if err != nil {
		return nil, err
	}
	list, err := srv.Files.List().
		Q(filesQuery(folderID, q)).
		Spaces("drive").
		OrderBy("modifiedTime desc").
		Fields(googleapi.Field("files(" + fileFields + ")")).
		Context(ctx).
		Do(g.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files := make([]RemoteFile, 0, len(list.Files))
	for _, f := range list.Files {
		files = append(files, toRemoteFile(f))
	}
	return files, nil
}

// UploadFile implements DriveService.
func (g *GoogleDrive) UploadFile(ctx context.Context, tok *oauth2.Token, folderID, fileID, name string, content []byte) (RemoteFile, error) {
	srv, err := g.service(ctx, tok)
	if err != nil {
		return RemoteFile{}, err
	}
	media := bytes.NewReader(content)

	var f *drive.File
	if fileID == "" {
		f, err = srv.Files.Create(&drive.File{Name: name, MimeType: jsonMimeType, Parents: []string{folderID}}).
			Media(media, googleapi.ContentType(jsonMimeType)).
			Fields(fileFields).
			Context(ctx).
			Do(g.callOptions()...)
	} else {
		f, err = srv.Files.Update(fileID, &drive.File{}).
			Media(media, googleapi.ContentType(jsonMimeType)).
			Fields(fileFields).
			Context(ctx).
			Do(g.callOptions()...)
	}
	if err != nil {
		return RemoteFile{}, fmt.Errorf("upload %q: %w", name, err)
	}
	return toRemoteFile(f), nil
}

// DownloadFile implements DriveService.
func (g *GoogleDrive) DownloadFile(ctx context.Context, tok *oauth2.Token, fileID string) ([]byte, error) {
	srv, err := g.service(ctx, tok)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Files.Get(fileID).Context(ctx).Download(g.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}

func folderQuery(name string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
}

func filesQuery(folderID string, q FileQuery) string {
	clauses := []string{
		fmt.Sprintf("'%s' in parents", escapeQuery(folderID)),
		"trashed = false",
	}
	if q.Name != "" {
		clauses = append(clauses, fmt.Sprintf("name = '%s'", escapeQuery(q.Name)))
	}
	if q.NameContains != "" {
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", escapeQuery(q.NameContains)))
	}
	return strings.Join(clauses, " and ")
}

// escapeQuery escapes a string literal for the Drive query language.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func toRemoteFile(f *drive.File) RemoteFile {
	rf := RemoteFile{ID: f.Id, Name: f.Name, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		rf.ModifiedTime = t
	}
	return rf
}
