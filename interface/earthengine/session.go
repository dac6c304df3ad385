package earthengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes required by Earth Engine
var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

const (
	// DefaultEndpoint of the Earth Engine REST API
	DefaultEndpoint = "https://earthengine.googleapis.com/"
	// DefaultProject is used when neither the configuration nor the credentials define a project
	DefaultProject = "earthengine-legacy"
)

// CredentialsFunc finds the credentials of the user
type CredentialsFunc func(ctx context.Context) (*google.Credentials, error)

// LoginFunc runs an interactive flow to create the credentials of the user
type LoginFunc func(ctx context.Context, scopes []string) error

// SessionConfig configures NewSession
type SessionConfig struct {
	Project         string          // Cloud project used for the calls (default: project of the credentials)
	CredentialsFile string          // Service account or authorized user JSON file (default: Application Default Credentials)
	Endpoint        string          // Earth Engine REST endpoint (default: DefaultEndpoint)
	Interactive     bool            // Run Login if no valid credential is found
	Login           LoginFunc       // default: GcloudLogin
	Credentials     CredentialsFunc // default: FindCredentials(CredentialsFile)
	HTTPClient      *http.Client    // Base client, for test purpose (default: oauth2 client of the credentials)
}

// Session is an authenticated connection to Earth Engine
type Session struct {
	Project  string // projects/<id>
	Endpoint string
	client   *http.Client
}

// FindCredentials returns a CredentialsFunc loading the file if not empty or the Application Default Credentials
func FindCredentials(file string) CredentialsFunc {
	return func(ctx context.Context) (*google.Credentials, error) {
		if file == "" {
			return google.FindDefaultCredentials(ctx, Scopes...)
		}
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("FindCredentials.ReadFile: %w", err)
		}
		return google.CredentialsFromJSON(ctx, b, Scopes...)
	}
}

// validCredentials finds the credentials and checks that they deliver a valid token
func validCredentials(ctx context.Context, find CredentialsFunc) (*google.Credentials, error) {
	creds, err := find(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.TokenSource == nil {
		return nil, fmt.Errorf("no token source")
	}
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("Token: %w", err)
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("invalid token")
	}
	return creds, nil
}

// NewSession authenticates the user and creates the http client of the Earth Engine REST API.
// If no valid credentials are found and cfg.Interactive is set, cfg.Login is run and the credentials are searched once more.
// Raise common.ErrAuthentication (fatal)
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	find := cfg.Credentials
	if find == nil {
		find = FindCredentials(cfg.CredentialsFile)
	}

	creds, err := validCredentials(ctx, find)
	if err != nil {
		if !cfg.Interactive {
			return nil, authError("NewSession", err)
		}
		log.Logger(ctx).Warn("no valid credentials found, starting the interactive login", zap.Error(err))
		login := cfg.Login
		if login == nil {
			login = GcloudLogin
		}
		if err := login(ctx, Scopes); err != nil {
			return nil, authError("NewSession.Login", err)
		}
		if creds, err = validCredentials(ctx, find); err != nil {
			return nil, authError("NewSession", err)
		}
	}

	project := cfg.Project
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		project = DefaultProject
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	var client *http.Client
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		hc.Transport = &oauth2.Transport{Source: creds.TokenSource, Base: cfg.HTTPClient.Transport}
		client = &hc
	} else {
		client = oauth2.NewClient(ctx, creds.TokenSource)
	}
	log.Logger(ctx).Sugar().Debugf("earth engine session on %s (project %s)", endpoint, project)

	return &Session{
		Project:  "projects/" + strings.TrimPrefix(project, "projects/"),
		Endpoint: endpoint,
		client:   client,
	}, nil
}

func authError(fn string, err error) error {
	return service.MakeFatal(fmt.Errorf("%s: %w: %w", fn, common.ErrAuthentication, err))
}

// GcloudLogin runs "gcloud auth application-default login" and logs its output.
func GcloudLogin(ctx context.Context, scopes []string) error {
	gcloud, err := exec.LookPath("gcloud")
	if err != nil {
		return fmt.Errorf("GcloudLogin: %w", err)
	}
	cmd := exec.Command(gcloud, "auth", "application-default", "login", "--scopes="+strings.Join(scopes, ","))
	cmd.Stdin = os.Stdin
	if err := execLogin(ctx, cmd); err != nil {
		return fmt.Errorf("GcloudLogin.%w", err)
	}
	return nil
}

// execLogin runs the login command. The authorization url is printed on stderr,
// which is logged at info level. Stdout is logged at debug level.
func execLogin(ctx context.Context, cmd *exec.Cmd) error {
	trim := log.FilterFunc(func(msg string, lvl zapcore.Level) (string, zapcore.Level, bool) {
		msg = strings.TrimSpace(msg)
		return msg, lvl, msg == ""
	})
	err := log.Exec(ctx, cmd,
		log.StdoutLevel(zapcore.DebugLevel), log.StdoutFilter(trim),
		log.StderrLevel(zapcore.InfoLevel), log.StderrFilter(trim))
	if err != nil {
		var eerr *exec.ExitError
		if errors.As(err, &eerr) {
			return fmt.Errorf("Exec: %s exited with code %d", cmd.Path, eerr.ExitCode())
		}
		return fmt.Errorf("Exec: %w", err)
	}
	return nil
}
