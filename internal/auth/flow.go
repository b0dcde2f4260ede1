package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const successPage = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head><meta charset="UTF-8"><title>Warraq</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>تمت المُصادقة بنجاح</h1>
<p>يمكنك إغلاق هذه النافذة والعودة إلى البرنامج.</p>
</body>
</html>`

type callbackResult struct {
	code string
	err  error
}

// Login runs the interactive authorization flow: binds the loopback callback
// listener, opens the authorization URL in a browser, waits for the redirect
// carrying the grant code, exchanges it, and persists the token.
func (p *GoogleProvider) Login(ctx context.Context) error {
	// Bind before opening the browser so the redirect target exists.
	lis, err := net.Listen("tcp", p.callbackAddr)
	if err != nil {
		return fmt.Errorf("bind callback listener on %s: %w", p.callbackAddr, err)
	}

	state := uuid.New().String()
	authURL := p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, err := extractCode(r.URL.Query().Get("code"), r.URL.Query().Get("state"), state)
		if err != nil {
			// Browsers also request favicon.ico and the like.
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(successPage))
		select {
		case results <- callbackResult{code: code}:
		default:
		}
	})}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	p.logger.Info("auth.flow.open_browser", "url", authURL)
	openBrowser(authURL)

	var res callbackResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return fmt.Errorf("authorization callback: %w", res.err)
	}

	tok, err := p.cfg.Exchange(ctx, res.code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(p.cachePath, tok); err != nil {
		return err
	}

	p.mu.Lock()
	p.source = p.cfg.TokenSource(context.Background(), tok)
	p.mu.Unlock()
	p.logger.Info("auth.flow.ok")
	return nil
}

// extractCode validates the callback query parameters.
func extractCode(code, gotState, wantState string) (string, error) {
	if code == "" {
		return "", errors.New("missing code parameter")
	}
	if gotState != wantState {
		return "", errors.New("state mismatch")
	}
	return code, nil
}

// openBrowser is best effort; the URL is always logged as a fallback.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
