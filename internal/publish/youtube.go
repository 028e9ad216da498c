package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// youtubeCredentials is the shape of the token file: an installed-app OAuth
// client plus a long-lived refresh token minted out of band.
type youtubeCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

type youtubePublisher struct {
	cfg    *config.Config
	logger logger.Logger
}

func NewYoutubePublisher(cfg *config.Config, logger logger.Logger) Publisher {
	return &youtubePublisher{cfg: cfg, logger: logger}
}

func (y *youtubePublisher) Platform() string { return PlatformYoutube }

func (y *youtubePublisher) Publish(ctx context.Context, input *models.PublishInput) (*Result, error) {
	client, err := y.oauthClient(ctx)
	if err != nil {
		return nil, stages.NewPermanent("publish", "youtube auth", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, stages.NewTransient("publish", "youtube service init", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       input.Title,
			Description: input.Caption,
			Tags:        input.Hashtags,
			CategoryId:  y.cfg.Publish.YoutubeCategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}

	f, err := os.Open(input.ClipPath)
	if err != nil {
		return nil, stages.NewPermanent("publish", "open clip file", err)
	}
	defer f.Close()

	y.logger.Infof("uploading %s to youtube", input.ClipPath)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)

	uploaded, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogleErr(err)
	}

	return &Result{
		ExternalID: uploaded.Id,
		UploadURL:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id),
	}, nil
}

func (y *youtubePublisher) oauthClient(ctx context.Context) (*http.Client, error) {
	path := y.cfg.Publish.YoutubeTokenFile
	if path == "" {
		return nil, errors.New("youtube token file not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read youtube token file")
	}
	var creds youtubeCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, errors.Wrap(err, "parse youtube token file")
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, errors.New("youtube token file missing client_id, client_secret or refresh_token")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh on first use
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

// classifyGoogleErr maps API failures onto the retry taxonomy: rate limits
// and server errors may be retried, everything else is terminal.
func classifyGoogleErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return stages.NewTransient("publish", "youtube upload", err)
		}
		return stages.NewPermanent("publish", "youtube upload", err)
	}
	return stages.NewTransient("publish", "youtube upload", err)
}
