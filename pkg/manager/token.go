package manager

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// JoinTokenManager issues and redeems one-time tokens that authorize a
// prospective node to call AddVoter against this cluster's leader. A
// token is bound to the NodeID it was minted for, so a token leaked to
// or intercepted by a different node cannot be redeemed, and redemption
// consumes it so a replayed join request fails the second time.
type JoinTokenManager struct {
	tokens map[string]*JoinToken
	mu     sync.RWMutex
}

// JoinToken is a pending authorization for one node to join the raft
// cluster as a voter.
type JoinToken struct {
	Token     string
	NodeID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewJoinTokenManager creates an empty token manager.
func NewJoinTokenManager() *JoinTokenManager {
	return &JoinTokenManager{
		tokens: make(map[string]*JoinToken),
	}
}

// Issue mints a token that only nodeID may redeem, valid for ttl.
func (tm *JoinTokenManager) Issue(nodeID string, ttl time.Duration) (*JoinToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate join token: %w", err)
	}

	jt := &JoinToken{
		Token:     hex.EncodeToString(buf),
		NodeID:    nodeID,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// Redeem consumes token if it is unexpired and bound to nodeID. A
// successful redemption deletes the token so it cannot be reused.
func (tm *JoinTokenManager) Redeem(token, nodeID string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	jt, exists := tm.tokens[token]
	if !exists {
		return fmt.Errorf("invalid join token")
	}
	if time.Now().After(jt.ExpiresAt) {
		delete(tm.tokens, token)
		return fmt.Errorf("join token expired")
	}
	if jt.NodeID != nodeID {
		return fmt.Errorf("join token was not issued for node %q", nodeID)
	}

	delete(tm.tokens, token)
	return nil
}

// Revoke invalidates a token before it is redeemed or expires.
func (tm *JoinTokenManager) Revoke(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// PruneExpired drops tokens past their ExpiresAt, bounding the map's
// growth between joins.
func (tm *JoinTokenManager) PruneExpired() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for token, jt := range tm.tokens {
		if now.After(jt.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}

// Pending returns every outstanding, unredeemed token.
func (tm *JoinTokenManager) Pending() []*JoinToken {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	out := make([]*JoinToken, 0, len(tm.tokens))
	for _, jt := range tm.tokens {
		out = append(out, jt)
	}
	return out
}
