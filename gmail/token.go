package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

func oauthClient(ctx context.Context, secret []byte, tokenPath string, in io.Reader, out io.Writer) (*http.Client, error) {
	config, err := google.ConfigFromJSON(secret, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}

	tok, err := tokenFromFile(tokenPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		tok, err = tokenFromWeb(ctx, config, in, out)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			return nil, err
		}
		slog.Info("oauth token saved", "path", tokenPath)
	default:
		return nil, fmt.Errorf("read token file: %w", err)
	}

	// The token source refreshes expired access tokens; persist the result
	// so the next run does not start from a stale token.
	src := config.TokenSource(ctx, tok)
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh oauth token: %w", err)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := saveToken(tokenPath, fresh); err != nil {
			return nil, err
		}
	}
	return oauth2.NewClient(ctx, src), nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return f.Close()
}
