package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"ecoplay/internal/service"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateTTL     = 10 * time.Minute
)

// OAuthProvider defines provider configuration and metadata
type OAuthProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
}

func (p OAuthProvider) configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

// GoogleProvider returns the Google sign-in provider
func GoogleProvider(clientID, clientSecret string) OAuthProvider {
	return OAuthProvider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: googleUserInfoURL,
	}
}

type oauthUserInfo struct {
	Subject string
	Email   string
	Name    string
}

// OAuthHandler runs the authorization code flow and hands the resulting
// bearer token to the browser client
type OAuthHandler struct {
	authService          *service.AuthService
	providers            map[string]OAuthProvider
	oauthRedirectBaseURL string
	frontendURL          string
	logger               *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(authService *service.AuthService, providers map[string]OAuthProvider, oauthRedirectBaseURL, frontendURL string, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{
		authService:          authService,
		providers:            providers,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		frontendURL:          frontendURL,
		logger:               logger.Named("oauth"),
	}
}

// StartOAuth initiates the OAuth flow for a provider
func (h *OAuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.providers[providerKey]
	if !ok || !provider.configured() {
		respondWithError(w, h.logger, http.StatusNotFound, "OAuth provider not configured", "", nil)
		return
	}

	state := uuid.NewString()
	setTempCookie(w, r, OAuthStateCookieName, providerKey+":"+state, oauthStateTTL)

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback handles the OAuth provider callback
func (h *OAuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.providers[providerKey]
	if !ok || !provider.configured() {
		respondWithError(w, h.logger, http.StatusNotFound, "OAuth provider not configured", "", nil)
		return
	}

	if reason := r.URL.Query().Get("error"); reason != "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "OAuth sign-in was cancelled", "", errors.New(reason))
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "Missing authorization code", "", nil)
		return
	}

	stateCookie, err := r.Cookie(OAuthStateCookieName)
	if err != nil || state == "" || stateCookie.Value != providerKey+":"+state {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid OAuth state", "", err)
		return
	}
	clearTempCookie(w, r, OAuthStateCookieName)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Failed to exchange OAuth code", "", err)
		return
	}

	userInfo, err := fetchOAuthUser(ctx, &config, provider.UserInfoURL, token)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadGateway, "Failed to fetch OAuth profile", "", err)
		return
	}

	result, err := h.authService.OAuthLogin(r.Context(), providerKey, userInfo.Subject, userInfo.Email, userInfo.Name)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	// The token travels in the fragment so it never reaches server logs
	fragment := url.Values{
		"token":  {result.Token},
		"userId": {fmt.Sprint(result.UserID)},
	}.Encode()
	http.Redirect(w, r, strings.TrimRight(h.frontendURL, "/")+"/oauth/callback#"+fragment, http.StatusSeeOther)
}

func fetchOAuthUser(ctx context.Context, config *oauth2.Config, userInfoURL string, token *oauth2.Token) (oauthUserInfo, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("user info endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail *bool  `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to parse user info: %w", err)
	}
	if payload.ID == "" || payload.Email == "" {
		return oauthUserInfo{}, errors.New("user info is missing id or email")
	}
	if payload.VerifiedEmail != nil && !*payload.VerifiedEmail {
		return oauthUserInfo{}, errors.New("email address is not verified")
	}

	return oauthUserInfo{Subject: payload.ID, Email: payload.Email, Name: payload.Name}, nil
}

func (h *OAuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if isSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/api/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func setTempCookie(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
	})
}

func clearTempCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
