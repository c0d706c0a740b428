package services

import (
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// refreshableTokenSource reports each new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

// NotifyingTokenSource wraps src so that fn sees every token it hands out for the first time.
func NotifyingTokenSource(src oauth2.TokenSource, fn func(*oauth2.Token)) oauth2.TokenSource {
	return &refreshableTokenSource{source: src, callback: fn}
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.notify(token)
	}
	return token, nil
}

func (r *refreshableTokenSource) notify(token *oauth2.Token) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn("token refresh callback panicked", "panic", p)
		}
	}()
	r.callback(token)
}
