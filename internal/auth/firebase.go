package auth

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/smartpick/smartpick/internal/model"
)

// idTokenVerifier is the subset of the Firebase auth client we depend on.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier initializes a Firebase app from service account credentials.
// projectID may be empty, in which case it is read from the credentials.
func NewFirebaseVerifier(ctx context.Context, credentialsJSON, projectID string) (*FirebaseVerifier, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the token signature, audience and expiry with Firebase.
// Tokens without an email claim are rejected, since every write is
// attributed to the caller's email.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := identityFromFirebase(tok)
	if id.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", ErrInvalidToken)
	}
	return id, nil
}

func identityFromFirebase(tok *fbauth.Token) *model.Identity {
	id := &model.Identity{
		Subject: tok.UID,
	}
	if id.Subject == "" {
		id.Subject = tok.Subject
	}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		id.Name = name
	}
	if tok.Expires > 0 {
		id.ExpiresAt = time.Unix(tok.Expires, 0).UTC()
	}
	return id
}
